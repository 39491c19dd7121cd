package memory

import (
	"github.com/api-sage/txn-settlement-processor/internal/adapter/repository/repo_interfaces"
)

var (
	_ repo_interfaces.AccountRepository     = (*AccountRepository)(nil)
	_ repo_interfaces.TransactionRepository = (*TransactionRepository)(nil)
)
