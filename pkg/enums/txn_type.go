package enums

// TxnType is the kind of stock-affecting transaction.
type TxnType string

const (
	TxnTypePurchase TxnType = "purchase"
	TxnTypeSale     TxnType = "sale"
	TxnTypeAdjust   TxnType = "adjust"
)

var txnTypes = newSet("txn type", TxnTypePurchase, TxnTypeSale, TxnTypeAdjust)

func (t TxnType) String() string { return string(t) }

func (t TxnType) IsValid() bool { return txnTypes.contains(t) }

// ParseTxnType is case-insensitive.
func ParseTxnType(value string) (TxnType, error) { return txnTypes.parse(value) }
