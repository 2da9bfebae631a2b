package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// defaultCategoryDefs is the starter taxonomy a fresh installation gets.
var defaultCategoryDefs = []struct {
	Name  string
	Color string
	Icon  string
}{
	{"Comida", "#F59E0B", "UtensilsCrossed"},
	{"Transporte", "#3B82F6", "Car"},
	{"Vivienda", "#10B981", "Home"},
	{"Salud", "#EF4444", "Heart"},
	{"Ocio", "#8B5CF6", "Gamepad2"},
	{"Educación", "#F97316", "GraduationCap"},
	{"Impuestos", "#6B7280", "Receipt"},
	{"Ingresos", "#10B981", "TrendingUp"},
	{"Otros", "#6B7280", "MoreHorizontal"},
}

// DefaultCategories materializes the starter taxonomy with fresh ids.
func DefaultCategories() []Category {
	now := time.Now().UTC()
	categories := make([]Category, len(defaultCategoryDefs))
	for i, def := range defaultCategoryDefs {
		categories[i] = Category{
			ID:        uuid.NewString(),
			Name:      def.Name,
			ParentID:  nil,
			Color:     def.Color,
			Icon:      def.Icon,
			CreatedAt: now,
		}
	}
	return categories
}

// SeedData builds a small starter ledger for a new user: three accounts, the
// default categories, a spread of transactions over the previous two months,
// and a pair of budgets for the current month. Balances and spent amounts are
// left to the engines; callers should recompute before presenting.
func SeedData(userID string) Snapshot {
	now := time.Now().UTC()
	categories := DefaultCategories()

	accounts := []Account{
		newSeedAccount(userID, "Efectivo", AccountCash, "500000", now),
		newSeedAccount(userID, "Cuenta Ahorros", AccountBank, "2000000", now),
		newSeedAccount(userID, "Tarjeta Crédito", AccountCard, "0", now),
	}

	catID := func(name string) *string {
		for _, c := range categories {
			if c.Name == name {
				id := c.ID
				return &id
			}
		}
		return nil
	}

	seed := []struct {
		daysAgo  int
		account  int
		kind     TransactionType
		category string
		amount   string
		note     string
		tags     []string
	}{
		{2, 0, TypeExpense, "Comida", "45000", "Mercado semanal", []string{"mercado"}},
		{5, 1, TypeIncome, "Ingresos", "2500000", "Salario", []string{"salario"}},
		{8, 2, TypeExpense, "Ocio", "80000", "Cine y cena", nil},
		{12, 0, TypeExpense, "Transporte", "30000", "Taxi aeropuerto", []string{"viaje"}},
		{20, 1, TypeExpense, "Vivienda", "650000", "Arriendo", []string{"fijo"}},
		{25, 1, TypeExpense, "Salud", "120000", "Consulta médica", nil},
		{35, 1, TypeIncome, "Ingresos", "2500000", "Salario", []string{"salario"}},
		{40, 2, TypeExpense, "Comida", "95000", "Restaurante", []string{"restaurante"}},
		{48, 1, TypeExpense, "Impuestos", "210000", "Predial", []string{"fijo"}},
		{55, 0, TypeExpense, "Otros", "15000", "Varios", nil},
	}

	transactions := make([]Transaction, 0, len(seed)+1)
	for _, s := range seed {
		transactions = append(transactions, Transaction{
			ID:         uuid.NewString(),
			UserID:     userID,
			Date:       now.AddDate(0, 0, -s.daysAgo),
			AccountID:  accounts[s.account].ID,
			Type:       s.kind,
			CategoryID: catID(s.category),
			Amount:     decimal.RequireFromString(s.amount),
			Note:       s.note,
			Tags:       s.tags,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	// One transfer so both legs of the balance algorithm are exercised.
	savingsToCash := accounts[0].ID
	transactions = append(transactions, Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        now.AddDate(0, 0, -10),
		AccountID:   accounts[1].ID,
		ToAccountID: &savingsToCash,
		Type:        TypeTransfer,
		Amount:      decimal.RequireFromString("200000"),
		Note:        "Retiro efectivo",
		Tags:        nil,
		CreatedAt:   now,
		UpdatedAt:   now,
	})

	month := CurrentMonth()
	budgets := []Budget{
		{
			ID:         uuid.NewString(),
			UserID:     userID,
			Month:      month,
			CategoryID: catID("Comida"),
			Amount:     decimal.RequireFromString("400000"),
			Spent:      decimal.Zero,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		{
			ID:        uuid.NewString(),
			UserID:    userID,
			Month:     month,
			Amount:    decimal.RequireFromString("3000000"),
			Spent:     decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	return Snapshot{
		Accounts:     accounts,
		Categories:   categories,
		Transactions: transactions,
		Budgets:      budgets,
	}
}

func newSeedAccount(userID, name string, kind AccountType, opening string, now time.Time) Account {
	balance := decimal.RequireFromString(opening)
	return Account{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		Type:           kind,
		Currency:       "COP",
		OpeningBalance: balance,
		CurrentBalance: balance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
