package repository

import (
	"context"

	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders       repo.OrderRepository
	orderItems   repo.OrderItemRepository
	carts        repo.CartRepository
	cartItems    repo.CartItemRepository
	inventory    repo.InventoryLedger
	books        repo.BookRepository
	pickupPoints repo.PickupPointRepository
	auditLogs    repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository             { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository     { return r.orderItems }
func (r *txReposGorm) Carts() repo.CartRepository               { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository       { return r.cartItems }
func (r *txReposGorm) Inventory() repo.InventoryLedger          { return r.inventory }
func (r *txReposGorm) Books() repo.BookRepository               { return r.books }
func (r *txReposGorm) PickupPoints() repo.PickupPointRepository { return r.pickupPoints }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository       { return r.auditLogs }

type TxManagerGorm struct {
	db    *gorm.DB
	clock repo.Clock
}

func NewTxManagerGorm(db *gorm.DB, clock repo.Clock) *TxManagerGorm {
	return &TxManagerGorm{db: db, clock: clock}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		cart := NewCartGormRepository(tx, tm.clock)
		r := &txReposGorm{
			orders:       NewOrderGormRepository(tx),
			orderItems:   NewOrderItemGormRepository(tx),
			carts:        cart,
			cartItems:    cart,
			inventory:    NewInventoryGormRepository(tx, tm.clock),
			books:        NewBookGormRepository(tx),
			pickupPoints: NewPickupPointGormRepository(tx),
			auditLogs:    NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
