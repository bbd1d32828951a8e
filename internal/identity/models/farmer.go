package models

import (
	"strings"
	"time"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

// BankDetails is where approved claim payouts are sent.
type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
}

// Complete reports whether a payout could be routed to this account.
func (b BankDetails) Complete() bool {
	return b.AccountHolder != "" && b.AccountNumber != "" && b.IFSC != ""
}

// Farmer is created on first registration after a verified code and is never
// hard-deleted.
type Farmer struct {
	ID           id.FarmerID
	Phone        id.Phone
	Name         string
	Address      string
	State        string
	District     string
	Village      string
	Bank         BankDetails
	ProfileImage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewFarmer(farmerID id.FarmerID, phone id.Phone, name string, now time.Time) (*Farmer, error) {
	if farmerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "farmer id is required")
	}
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "farmer phone is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "farmer name is required")
	}
	return &Farmer{ID: farmerID, Phone: phone, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// ProfileComplete mirrors what the mobile app needs before policy purchase.
func (f *Farmer) ProfileComplete() bool {
	return f.Name != "" && f.State != ""
}

// ApplyProfile overwrites the fields present in update. Phone is immutable.
func (f *Farmer) ApplyProfile(update ProfileUpdate, now time.Time) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&f.Name, update.Name)
	set(&f.Address, update.Address)
	set(&f.State, update.State)
	set(&f.District, update.District)
	set(&f.Village, update.Village)
	if update.Bank != nil {
		f.Bank = *update.Bank
	}
	f.UpdatedAt = now
}
