package store

import (
	"fmt"
	"strings"
)

// Path builders for the persisted state layout. Document IDs for
// transactions, dues records, readings and bills are compatibility-critical;
// see the corresponding domain constructors.

func ClientsCol() string                { return "clients" }
func ClientPath(clientID string) string { return "clients/" + clientID }

func CategoriesCol(clientID string) string { return ClientPath(clientID) + "/categories" }
func CategoryPath(clientID, catID string) string {
	return CategoriesCol(clientID) + "/" + catID
}

func VendorsCol(clientID string) string { return ClientPath(clientID) + "/vendors" }
func VendorPath(clientID, vendorID string) string {
	return VendorsCol(clientID) + "/" + vendorID
}

func PaymentMethodsCol(clientID string) string { return ClientPath(clientID) + "/paymentMethods" }
func PaymentMethodPath(clientID, id string) string {
	return PaymentMethodsCol(clientID) + "/" + id
}

func UnitsCol(clientID string) string          { return ClientPath(clientID) + "/units" }
func UnitPath(clientID, unitID string) string  { return UnitsCol(clientID) + "/" + unitID }

func DuesCol(clientID, unitID string) string { return UnitPath(clientID, unitID) + "/dues" }
func DuesPath(clientID, unitID string, fiscalYear int) string {
	return fmt.Sprintf("%s/%04d", DuesCol(clientID, unitID), fiscalYear)
}

// Credit balances live one document per unit, the layout chosen for this
// rewrite. The single-document-with-field-per-unit layout is not used.
func CreditCol(clientID, unitID string) string {
	return UnitPath(clientID, unitID) + "/creditBalances"
}
func CreditPath(clientID, unitID string) string {
	return CreditCol(clientID, unitID) + "/current"
}

func TransactionsCol(clientID string) string { return ClientPath(clientID) + "/transactions" }
func TransactionPath(clientID, txID string) string {
	return TransactionsCol(clientID) + "/" + txID
}

func WaterProjectPath(clientID string) string {
	return ClientPath(clientID) + "/projects/waterBills"
}
func WaterConfigPath(clientID string) string {
	return WaterProjectPath(clientID) + "/meta/config"
}
func ReadingsCol(clientID string) string { return WaterProjectPath(clientID) + "/readings" }
func ReadingsPath(clientID, readingsID string) string {
	return ReadingsCol(clientID) + "/" + readingsID
}
func BillsCol(clientID string) string { return WaterProjectPath(clientID) + "/bills" }
func BillPath(clientID, billID string) string {
	return BillsCol(clientID) + "/" + billID
}

func BudgetsCol(clientID string) string { return ClientPath(clientID) + "/budgets" }
func BudgetPath(clientID string, fiscalYear int, categoryID string) string {
	return fmt.Sprintf("%s/%04d_%s", BudgetsCol(clientID), fiscalYear, categoryID)
}

func ConfigCol(clientID string) string { return ClientPath(clientID) + "/config" }
func ConfigPath(clientID, docName string) string {
	return ConfigCol(clientID) + "/" + docName
}

func AuditCol(clientID string) string { return ClientPath(clientID) + "/auditLog" }
func AuditPath(clientID, id string) string {
	return AuditCol(clientID) + "/" + id
}

func ImportMetaCol(clientID string) string { return ClientPath(clientID) + "/importMetadata" }
func ImportMetaPath(clientID, runID string) string {
	return ImportMetaCol(clientID) + "/" + runID
}

// SplitPath splits a path into segments.
func SplitPath(path string) []string {
	return strings.Split(path, "/")
}

// IsDocPath reports whether path addresses a document (even segment count).
func IsDocPath(path string) bool {
	return len(SplitPath(path))%2 == 0
}

// DocID returns the last segment of a document path.
func DocID(path string) string {
	segs := SplitPath(path)
	return segs[len(segs)-1]
}

// ParentPath returns the path with its last segment removed.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
