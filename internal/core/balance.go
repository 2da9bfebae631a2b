package core

// RecomputeBalances derives every account's current balance from its opening
// balance plus the signed effect of each transaction touching it: income adds,
// expense subtracts, a transfer subtracts at its source account and adds at
// its destination. The full set is recomputed on every call rather than
// patched incrementally, so a dropped or edited transaction can never leave a
// stale contribution behind.
//
// Pure function: inputs are not mutated, all non-balance fields pass through
// unchanged.
func RecomputeBalances(accounts []Account, transactions []Transaction) []Account {
	out := make([]Account, len(accounts))
	for i, account := range accounts {
		balance := account.OpeningBalance
		for _, t := range transactions {
			if t.AccountID == account.ID {
				switch t.Type {
				case TypeIncome:
					balance = balance.Add(t.Amount)
				case TypeExpense:
					balance = balance.Sub(t.Amount)
				case TypeTransfer:
					balance = balance.Sub(t.Amount)
				}
			}
			if t.Type == TypeTransfer && t.ToAccountID != nil && *t.ToAccountID == account.ID {
				balance = balance.Add(t.Amount)
			}
		}
		account.CurrentBalance = balance
		out[i] = account
	}
	return out
}
