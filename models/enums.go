package models

import "errors"

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOperator UserRole = "O"
	UserRoleClient   UserRole = "C"
)

// Privileged roles may edit delivery and payment primitives; clients only read.
func (r UserRole) IsPrivileged() bool {
	return r == UserRoleAdmin || r == UserRoleOperator
}

func ParseUserRole(s string) (UserRole, error) {
	switch UserRole(s) {
	case UserRoleAdmin, UserRoleOperator, UserRoleClient:
		return UserRole(s), nil
	}
	return "", errors.New("invalid user role")
}

// LedgerInstallment names one of the five supplier payment slots.
type LedgerInstallment string

const (
	LedgerInstallmentAdvance LedgerInstallment = "Advance"
	LedgerInstallmentFirst   LedgerInstallment = "Interim1"
	LedgerInstallmentSecond  LedgerInstallment = "Interim2"
	LedgerInstallmentThird   LedgerInstallment = "Interim3"
	LedgerInstallmentBalance LedgerInstallment = "Balance"
)

// LedgerInstallments is the fixed slot order used for display and exports.
var LedgerInstallments = []LedgerInstallment{
	LedgerInstallmentAdvance,
	LedgerInstallmentFirst,
	LedgerInstallmentSecond,
	LedgerInstallmentThird,
	LedgerInstallmentBalance,
}

func IsValidInstallment(s LedgerInstallment) bool {
	for _, name := range LedgerInstallments {
		if name == s {
			return true
		}
	}
	return false
}
