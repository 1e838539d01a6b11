package txn

import "github.com/cuemby/optimystic/internal/block"

// ReadRef names one block revision observed while executing a
// transaction's statements, accumulated into Transaction.reads.
type ReadRef struct {
	BlockId block.Id       `json:"blockId"`
	Rev     block.Revision `json:"rev"`
}

// Transaction is the unit of work driven through GATHER/PEND/COMMIT.
type Transaction struct {
	Stamp      Stamp     `json:"stamp"`
	Statements []string  `json:"statements"`
	Reads      []ReadRef `json:"reads"`
	Id         string    `json:"id"`
}

// NewTransaction builds a Transaction and computes its id.
func NewTransaction(stamp Stamp, statements []string, reads []ReadRef) *Transaction {
	return &Transaction{
		Stamp:      stamp,
		Statements: statements,
		Reads:      reads,
		Id:         TransactionId(stamp, statements, reads),
	}
}

// CollectionResult is one collection's outcome within a transaction.
type CollectionResult struct {
	CollectionId string
	BlockIds     []block.Id
}

// Result is the outcome of running a Transaction to completion.
type Result struct {
	Success       bool
	TransactionId string
	Collections   []CollectionResult
	Reason        string
	Compensated   bool
}
