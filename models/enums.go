package models

type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
)

type EntrySubType string

const (
	EntrySubTypeTithe    EntrySubType = "tithe"
	EntrySubTypeOffering EntrySubType = "offering"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCheck    PaymentMethod = "check"
)

// IsCash decides which donor-summary bucket an amount lands in. Everything
// that is not physical cash counts toward the transfer bucket so the two
// buckets always add up to the donor total.
func (m PaymentMethod) IsCash() bool {
	return m == PaymentMethodCash
}

type ExpenseCategory string

const (
	ExpenseCategoryMaintenance ExpenseCategory = "maintenance"
	ExpenseCategoryUtilities   ExpenseCategory = "utilities"
	ExpenseCategoryOutreach    ExpenseCategory = "outreach"
	ExpenseCategorySupplies    ExpenseCategory = "supplies"
	ExpenseCategoryHonoraria   ExpenseCategory = "honoraria"
	ExpenseCategoryOther       ExpenseCategory = "other"
)

type IntentType string

const (
	IntentTypeTithe    IntentType = "tithe"
	IntentTypeOffering IntentType = "offering"
)

// SubType maps a donor-declared intent type onto the ledger sub-type.
func (t IntentType) SubType() EntrySubType {
	if t == IntentTypeTithe {
		return EntrySubTypeTithe
	}
	return EntrySubTypeOffering
}

type EntryEventAction string

const (
	EntryEventActionCreate EntryEventAction = "C"
	EntryEventActionUpdate EntryEventAction = "U"
	EntryEventActionDelete EntryEventAction = "D"
)

type UserRole string

const (
	UserRoleMember UserRole = "M"
	UserRoleAdmin  UserRole = "A"
	UserRolePastor UserRole = "P"
)

type SalaryStatus string

const (
	SalaryStatusDraft SalaryStatus = "D"
	SalaryStatusPaid  SalaryStatus = "P"
)
