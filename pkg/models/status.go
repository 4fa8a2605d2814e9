package models

import (
	"fmt"
	"sort"
)

// Namespace groups status codes by the kind of record they describe.
type Namespace string

const (
	NamespaceApplication Namespace = "application"
	NamespaceLoan        Namespace = "loan"
	NamespaceAccount     Namespace = "account"
	NamespaceCustomer    Namespace = "customer"
)

// StatusCode is the integer identifier of a status.
type StatusCode int

// Status is a catalogued status code with its human label.
type Status struct {
	Code      StatusCode `json:"code"`
	Label     string     `json:"label"`
	Namespace Namespace  `json:"namespace"`
}

// Application statuses.
const (
	ApplicationFormCreated              StatusCode = 100
	ApplicationFormPartial              StatusCode = 105
	ApplicationFormPartialExpired       StatusCode = 106
	ApplicationFormSubmitted            StatusCode = 110
	ApplicationDocumentsSubmitted       StatusCode = 120
	ApplicationScrapedDataVerified      StatusCode = 121
	ApplicationDocumentsVerified        StatusCode = 130
	ApplicationDenied                   StatusCode = 135
	ApplicationCancelledByCustomer      StatusCode = 137
	ApplicationOfferAcceptedByCustomer  StatusCode = 141
	ApplicationVerificationCallsSuccess StatusCode = 150
	ApplicationActivationCallSuccessful StatusCode = 170
	ApplicationFundDisbursalSuccessful  StatusCode = 180
	ApplicationCustomerOnDeletion       StatusCode = 185
	ApplicationCustomerDeleted          StatusCode = 186
	ApplicationLineOfCreditApproved     StatusCode = 190
)

// Loan statuses.
const (
	LoanInactive             StatusCode = 210
	LoanLenderApproval       StatusCode = 211
	LoanFundDisbursalOngoing StatusCode = 212
	LoanLenderReject         StatusCode = 215
	LoanCancelledByCustomer  StatusCode = 216
	LoanCurrent              StatusCode = 220
	LoanOneDayPastDue        StatusCode = 230
	LoanPaidOff              StatusCode = 250
)

// Account statuses.
const (
	AccountInactive   StatusCode = 410
	AccountActive     StatusCode = 420
	AccountSuspended  StatusCode = 430
	AccountTerminated StatusCode = 432
)

// Customer statuses.
const (
	CustomerActive            StatusCode = 500
	CustomerDeletionRequested StatusCode = 510
	CustomerDeleted           StatusCode = 520
)

var catalog = map[StatusCode]Status{}

func register(ns Namespace, code StatusCode, label string) {
	if _, exists := catalog[code]; exists {
		panic(fmt.Sprintf("status code %d registered twice", code))
	}

	catalog[code] = Status{Code: code, Label: label, Namespace: ns}
}

func init() {
	register(NamespaceApplication, ApplicationFormCreated, "Form Created")
	register(NamespaceApplication, ApplicationFormPartial, "Form Partial")
	register(NamespaceApplication, ApplicationFormPartialExpired, "Form Partial Expired")
	register(NamespaceApplication, ApplicationFormSubmitted, "Form Submitted")
	register(NamespaceApplication, ApplicationDocumentsSubmitted, "Documents Submitted")
	register(NamespaceApplication, ApplicationScrapedDataVerified, "Scraped Data Verified")
	register(NamespaceApplication, ApplicationDocumentsVerified, "Documents Verified")
	register(NamespaceApplication, ApplicationDenied, "Application Denied")
	register(NamespaceApplication, ApplicationCancelledByCustomer, "Application Cancelled By Customer")
	register(NamespaceApplication, ApplicationOfferAcceptedByCustomer, "Offer Accepted By Customer")
	register(NamespaceApplication, ApplicationVerificationCallsSuccess, "Verification Calls Successful")
	register(NamespaceApplication, ApplicationActivationCallSuccessful, "Activation Call Successful")
	register(NamespaceApplication, ApplicationFundDisbursalSuccessful, "Fund Disbursal Successful")
	register(NamespaceApplication, ApplicationCustomerOnDeletion, "Customer On Deletion")
	register(NamespaceApplication, ApplicationCustomerDeleted, "Customer Deleted")
	register(NamespaceApplication, ApplicationLineOfCreditApproved, "Line Of Credit Approved")

	register(NamespaceLoan, LoanInactive, "Inactive")
	register(NamespaceLoan, LoanLenderApproval, "Lender Approval")
	register(NamespaceLoan, LoanFundDisbursalOngoing, "Fund Disbursal Ongoing")
	register(NamespaceLoan, LoanLenderReject, "Lender Reject")
	register(NamespaceLoan, LoanCancelledByCustomer, "Cancelled By Customer")
	register(NamespaceLoan, LoanCurrent, "Current")
	register(NamespaceLoan, LoanOneDayPastDue, "1 DPD")
	register(NamespaceLoan, LoanPaidOff, "Paid Off")

	register(NamespaceAccount, AccountInactive, "Inactive")
	register(NamespaceAccount, AccountActive, "Active")
	register(NamespaceAccount, AccountSuspended, "Suspended")
	register(NamespaceAccount, AccountTerminated, "Terminated")

	register(NamespaceCustomer, CustomerActive, "Active")
	register(NamespaceCustomer, CustomerDeletionRequested, "Deletion Requested")
	register(NamespaceCustomer, CustomerDeleted, "Deleted")
}

// LookupStatus returns the catalogued status for code.
func LookupStatus(code StatusCode) (Status, bool) {
	status, ok := catalog[code]

	return status, ok
}

// StatusesIn returns the catalogued statuses of a namespace ordered by code.
func StatusesIn(ns Namespace) []Status {
	statuses := make([]Status, 0)

	for _, status := range catalog {
		if status.Namespace == ns {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Code < statuses[j].Code
	})

	return statuses
}

// Label returns the catalogued label, or the bare number for unknown codes.
func (c StatusCode) Label() string {
	if status, ok := catalog[c]; ok {
		return status.Label
	}

	return fmt.Sprintf("status %d", int(c))
}

func (c StatusCode) String() string {
	return fmt.Sprintf("%d (%s)", int(c), c.Label())
}
