// Package models contains the domain structures shared by storage,
// services and handlers, plus the request DTOs received as JSON.
package models

import "time"

// Plan is one row of the plan catalog. The catalog is seeded by a
// migration and treated as read-mostly.
type Plan struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`         // machine name: free, pro, premium, elite
	DisplayName  string   `json:"display_name"` // human name shown in notifications
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	BillingCycle string   `json:"billing_cycle"` // monthly, yearly, lifetime
	Features     []string `json:"features"`
}

// User is an account row.
type User struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Subscription is one billing-state row of a user. PeriodEnd is nil for
// lifetime plans.
type Subscription struct {
	ID               int        `json:"id"`
	UserUID          string     `json:"user_uid"`
	PlanID           int        `json:"plan_id"`
	Status           string     `json:"status"`
	PeriodStart      time.Time  `json:"current_period_start"`
	PeriodEnd        *time.Time `json:"current_period_end"`
	PaymentMethod    string     `json:"payment_method"`
	PaymentReference string     `json:"payment_reference"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HistoryEntry is one row of the append-only subscription ledger.
type HistoryEntry struct {
	ID               int       `json:"id"`
	SubscriptionID   int       `json:"subscription_id"`
	UserUID          string    `json:"user_uid"`
	ActionType       string    `json:"action_type"` // payment, renewal, upgrade, downgrade, cancellation
	FromPlanID       *int      `json:"from_plan_id"`
	ToPlanID         int       `json:"to_plan_id"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	GatewayReference string    `json:"gateway_reference"`
	CreatedAt        time.Time `json:"created_at"`
}

// ExpiringSubscription is what the reminder scan publishes for one user.
type ExpiringSubscription struct {
	SubscriptionID  int       `json:"subscription_id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	PlanDisplayName string    `json:"plan_display_name"`
	PeriodEnd       time.Time `json:"period_end"`
}

// ForumCategory groups threads. Slug is derived from the name and unique.
type ForumCategory struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// ForumPost is a thread root (ParentID nil) or a reply.
type ForumPost struct {
	ID         int       `json:"id"`
	CategoryID int       `json:"category_id"`
	UserUID    string    `json:"user_uid"`
	ParentID   *int      `json:"parent_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	VoteSum    int       `json:"vote_sum"`
	ReplyCount int       `json:"reply_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Trade is a manually entered journal record.
type Trade struct {
	ID         int        `json:"id"`
	UserUID    string     `json:"user_uid"`
	Symbol     string     `json:"symbol"`
	Direction  string     `json:"direction"` // long, short
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Size       float64    `json:"size"`
	StopPrice  float64    `json:"stop_price"`
	PnL        float64    `json:"pnl"`
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at"`
	Notes      string     `json:"notes"`
}

// PerformanceMetrics are derived from a user's trades, recomputed on read.
type PerformanceMetrics struct {
	UserUID      string    `json:"user_uid"`
	Period       string    `json:"period"` // "2006-01" or "all"
	TotalTrades  int       `json:"total_trades"`
	WinRate      float64   `json:"win_rate"`
	AvgWin       float64   `json:"avg_win"`
	AvgLoss      float64   `json:"avg_loss"`
	ProfitFactor float64   `json:"profit_factor"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Holding is one asset position of a user's crypto portfolio.
type Holding struct {
	ID      int     `json:"id"`
	UserUID string  `json:"user_uid"`
	Asset   string  `json:"asset"`
	Amount  float64 `json:"amount"`
}

// HoldingValuation is a holding priced via the market-data feed.
type HoldingValuation struct {
	Asset  string  `json:"asset"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
}

// DummyRegister is the JSON body of POST /register.
type DummyRegister struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,alphanum"`
	Password string `json:"password" validate:"required,min=8"`
}

// DummyLogin is the JSON body of POST /login.
type DummyLogin struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// DummyCheckout is the JSON body of POST /subscriptions/checkout.
type DummyCheckout struct {
	PlanName      string `json:"plan_name" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=stripe flutterwave nowpayments"`
}

// DummyStatusOverride is the JSON body of the admin status override.
type DummyStatusOverride struct {
	Status string `json:"status" validate:"required,oneof=pending active expired cancelled failed"`
}

// DummyCategory is the JSON body of POST /forum/categories.
type DummyCategory struct {
	Name        string `json:"name" validate:"required,min=3,max=80"`
	Description string `json:"description" validate:"max=500"`
}

// DummyPost is the JSON body of POST /forum/posts.
type DummyPost struct {
	CategoryID int    `json:"category_id" validate:"required,gt=0"`
	ParentID   *int   `json:"parent_id"`
	Title      string `json:"title" validate:"max=200"`
	Content    string `json:"content" validate:"required"`
}

// DummyVote is the JSON body of POST /forum/posts/{id}/vote.
type DummyVote struct {
	Value int `json:"value" validate:"required,oneof=-1 1"`
}

// DummyTrade is the JSON body of the journal trade endpoints. Dates come
// as strings so they can be validated and parsed by hand.
type DummyTrade struct {
	Symbol     string  `json:"symbol" validate:"required"`
	Direction  string  `json:"direction" validate:"required,oneof=long short"`
	EntryPrice float64 `json:"entry_price" validate:"required,gt=0"`
	ExitPrice  float64 `json:"exit_price" validate:"gte=0"`
	Size       float64 `json:"size" validate:"required,gt=0"`
	StopPrice  float64 `json:"stop_price" validate:"gte=0"`
	OpenedAt   string  `json:"opened_at" validate:"required"`
	ClosedAt   string  `json:"closed_at"`
	Notes      string  `json:"notes" validate:"max=2000"`
}

// DummyHolding is the JSON body of the portfolio holding endpoints.
// The asset symbol is upper-cased by the service.
type DummyHolding struct {
	Asset  string  `json:"asset" validate:"required,alphanum"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}
