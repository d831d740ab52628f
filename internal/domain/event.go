package domain

const (
	TopicTransactionCompleted       = "TRANSACTION_COMPLETED"
	TopicCounterDepositNotification = "COUNTER_DEPOSIT_NOTIFICATION"
)

// AccountEvent is the payload published for every ledger status change.
// The topic is the action name.
type AccountEvent struct {
	Action    AccountAction `json:"action"`
	AccountID string        `json:"accountId"`
	UserID    string        `json:"userId"`
	Timestamp string        `json:"timestamp"`
}

type TransactionEvent struct {
	Type            TransactionType   `json:"type"`
	TransactionID   string            `json:"transactionId"`
	FromAccount     string            `json:"fromAccount,omitempty"`
	ToAccount       string            `json:"toAccount,omitempty"`
	UserID          string            `json:"userId"`
	Amount          string            `json:"amount"`
	Status          TransactionStatus `json:"status"`
	TransactionCode string            `json:"transactionCode,omitempty"`
	Timestamp       string            `json:"timestamp"`
}

type CounterDepositEvent struct {
	TransactionID   string            `json:"transactionId"`
	TransactionCode string            `json:"transactionCode"`
	StaffID         string            `json:"staffId"`
	CounterID       string            `json:"counterId"`
	UserID          string            `json:"userId"`
	Amount          string            `json:"amount"`
	Status          TransactionStatus `json:"status"`
	Timestamp       string            `json:"timestamp"`
}
