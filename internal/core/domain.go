package core

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrEmptyUserName    = errors.New("user name is required")
	ErrEmptyMobile      = errors.New("mobile number is required")
	ErrEmptyLocation    = errors.New("location is required")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrMissingBillImage = errors.New("bill image is required")
)

type (
	// BillImageRef points at an uploaded bill in the blob store. StorageID
	// is kept so the blob can be deleted together with its record.
	BillImageRef struct {
		URL       string `json:"url"`
		StorageID string `json:"storageId"`
	}

	// FinanceRecord is one finance entry: one bill, one amount.
	FinanceRecord struct {
		ID           string       `json:"id"`
		UserName     string       `json:"userName"`
		MobileNumber string       `json:"mobileNumber"`
		Amount       Amount       `json:"amount"`
		Location     string       `json:"location"`
		BillImage    BillImageRef `json:"billImage"`
		CreatedAt    time.Time    `json:"createdAt"`
		UpdatedAt    time.Time    `json:"updatedAt"`
	}

	// RecordFields are the caller-supplied fields of a record, separate
	// from the image reference which comes from the blob store.
	RecordFields struct {
		UserName     string
		MobileNumber string
		Amount       Amount
		Location     string
	}
)

func (r BillImageRef) Validate() error {
	if strings.TrimSpace(r.URL) == "" || strings.TrimSpace(r.StorageID) == "" {
		return ErrMissingBillImage
	}
	return nil
}

func (f RecordFields) Validate() error {
	if strings.TrimSpace(f.UserName) == "" {
		return ErrEmptyUserName
	}
	if strings.TrimSpace(f.MobileNumber) == "" {
		return ErrEmptyMobile
	}
	if strings.TrimSpace(f.Location) == "" {
		return ErrEmptyLocation
	}
	if f.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Validate enforces the persistence invariant: no record may exist without
// its required fields and a fully populated bill image reference.
func (r FinanceRecord) Validate() error {
	fields := RecordFields{
		UserName:     r.UserName,
		MobileNumber: r.MobileNumber,
		Amount:       r.Amount,
		Location:     r.Location,
	}
	if err := fields.Validate(); err != nil {
		return err
	}
	return r.BillImage.Validate()
}
