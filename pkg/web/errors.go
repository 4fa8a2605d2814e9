package web

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/lendstate/lendstate/pkg/errkeys"
	"github.com/lendstate/lendstate/pkg/verification"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType(errkeys.InvalidRequest).
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// handleServiceError answers with an RFC 7807 problem whose type is the stable key of err.
func handleServiceError(c fiber.Ctx, err error) error {
	key, status := errkeys.Lookup(err)

	var throttle *verification.ThrottleError
	if errors.As(err, &throttle) && throttle.RetryAfter > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(throttle.RetryAfter.Seconds()))))
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(key)

	if status == fiber.StatusInternalServerError {
		problem = problem.WithDetail("internal error")
	} else {
		problem = problem.WithDetail(err.Error())
	}

	return c.Status(status).JSON(problem)
}
