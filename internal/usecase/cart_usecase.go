package usecase

import (
	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
	"context"
	"errors"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// 1カートに入れられる上限
const MaxCartItems = 4

// レンタル日数の上限
const maxRentalDays = 365

// CartUsecase は /cart の業務ロジックです。
// カートは在庫を減らさない（確定時にInventoryLedgerで確保する）。
type CartUsecase struct {
	tx        repo.TransactionManager
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	books     repo.BookRepository
	clock     Clock
}

func NewCartUsecase(
	tx repo.TransactionManager,
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	books repo.BookRepository,
	clock Clock,
) *CartUsecase {
	return &CartUsecase{
		tx:        tx,
		carts:     carts,
		cartItems: cartItems,
		books:     books,
		clock:     clock,
	}
}

type AddCartItemInput struct {
	BookID     int64
	Type       model.ItemType
	RentalDays *int
}

type CartLine struct {
	CartItemID      int64           `json:"cart_item_id"`
	BookID          int64           `json:"book_id"`
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	ImageURL        string          `json:"image_url"`
	Type            model.ItemType  `json:"type"`
	RentalDays      *int            `json:"rental_days,omitempty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	Available       bool            `json:"available"`
}

type CartContents struct {
	Items         []CartLine      `json:"items"`
	ItemCount     int             `json:"item_count"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
}

func validateCartInput(in AddCartItemInput) error {
	if in.BookID <= 0 {
		return validationError("invalid book_id")
	}
	if !in.Type.Valid() {
		return validationError("invalid type")
	}
	if in.Type == model.ItemTypeRent {
		if in.RentalDays == nil {
			return validationError("rental days are required for RENT items")
		}
		if *in.RentalDays < 1 || *in.RentalDays > maxRentalDays {
			return validationError("rental days must be between 1 and %d", maxRentalDays)
		}
	}
	if in.Type == model.ItemTypeBuy && in.RentalDays != nil {
		return validationError("rental days are only allowed for RENT items")
	}
	return nil
}

// AddItem はカートに1冊追加する。カートが無ければ作る
func (u *CartUsecase) AddItem(ctx context.Context, userID int64, in AddCartItemInput) (model.CartItem, error) {
	if userID <= 0 {
		return model.CartItem{}, newError(KindUnauthorized, "unauthorized")
	}
	if err := validateCartInput(in); err != nil {
		return model.CartItem{}, err
	}

	var created model.CartItem

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じユーザーの同時追加はカート行ロックで直列化
		cart, err := r.Carts().GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return internalError(err)
		}

		count, err := r.CartItems().CountByCartID(ctx, cart.ID)
		if err != nil {
			return internalError(err)
		}
		if count >= MaxCartItems {
			return newError(KindCartFull, "Cart is full. Maximum %d items allowed", MaxCartItems)
		}

		book, err := r.Books().FindByID(ctx, in.BookID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Book not found")
		}
		if err != nil {
			return internalError(err)
		}

		//同じ本がカートに何冊あるか（在庫は減らさずに比較だけする）
		inCart, err := r.CartItems().CountByCartAndBook(ctx, cart.ID, in.BookID)
		if err != nil {
			return internalError(err)
		}
		if inCart+1 > book.StockQuantity {
			return newError(KindNotEnoughStock, "Not enough books available. Available: %d, total: %d", book.StockQuantity, inCart+1)
		}

		created, err = r.CartItems().Create(ctx, model.CartItem{
			CartID:     cart.ID,
			BookID:     in.BookID,
			Type:       in.Type,
			RentalDays: in.RentalDays,
			AddedAt:    u.clock.Now(),
		})
		if err != nil {
			return internalError(err)
		}

		if err := r.Carts().Touch(ctx, cart.ID); err != nil {
			return internalError(err)
		}
		return nil
	})

	if err != nil {
		return model.CartItem{}, err
	}
	return created, nil
}

// RemoveItem は明細を1件消す。最後の1件ならカートごと消す
func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, cartItemID int64) error {
	if userID <= 0 {
		return newError(KindUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return validationError("invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByUserIDForUpdate(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			// カートが無ければ何もしない
			return nil
		}
		if err != nil {
			return internalError(err)
		}

		item, err := r.CartItems().FindByID(ctx, cartItemID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && item.CartID != cart.ID) {
			//他人の明細も「存在しない扱い」にする
			return notFound("Cart item not found")
		}
		if err != nil {
			return internalError(err)
		}

		if err := r.CartItems().DeleteByID(ctx, item.ID); err != nil {
			return internalError(err)
		}

		left, err := r.CartItems().CountByCartID(ctx, cart.ID)
		if err != nil {
			return internalError(err)
		}
		if left == 0 {
			return wrap(r.Carts().Delete(ctx, cart.ID))
		}
		return wrap(r.Carts().Touch(ctx, cart.ID))
	})
}

// Clear はカートと明細を全て消す
func (u *CartUsecase) Clear(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return newError(KindUnauthorized, "unauthorized")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByUserIDForUpdate(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(KindCart, "Cart is empty or not found")
		}
		if err != nil {
			return internalError(err)
		}
		return wrap(r.Carts().Delete(ctx, cart.ID))
	})
}

// GetContents はカートの中身を価格と在庫状況付きで返す
func (u *CartUsecase) GetContents(ctx context.Context, userID int64) (CartContents, error) {
	if userID <= 0 {
		return CartContents{}, newError(KindUnauthorized, "unauthorized")
	}

	empty := CartContents{Items: []CartLine{}, TotalPrice: decimal.Zero, TotalDiscount: decimal.Zero}

	cart, err := u.carts.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return CartContents{}, internalError(err)
	}

	items, err := u.cartItems.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartContents{}, internalError(err)
	}

	bookIDs := lo.Uniq(lo.Map(items, func(it model.CartItem, _ int) int64 { return it.BookID }))
	books, err := u.books.FindByIDs(ctx, bookIDs)
	if err != nil {
		return CartContents{}, internalError(err)
	}

	out := empty
	out.Items = make([]CartLine, 0, len(items))
	for _, it := range items {
		line := CartLine{
			CartItemID: it.ID,
			BookID:     it.BookID,
			Type:       it.Type,
			RentalDays: it.RentalDays,
		}

		book, ok := books[it.BookID]
		if !ok {
			// カタログから消えた本は購入不可として返す
			line.OriginalPrice, line.FinalPrice, line.DiscountPercent = decimal.Zero, decimal.Zero, decimal.Zero
			out.Items = append(out.Items, line)
			continue
		}

		price := priceLine(book, it.Type, it.RentalDays)
		sameBook := lo.CountBy(items, func(x model.CartItem) bool { return x.BookID == it.BookID })

		line.Title = book.Title
		line.Author = book.AuthorName
		line.ImageURL = book.ImageURL
		line.DiscountPercent = price.DiscountPercent
		line.OriginalPrice = price.Original
		line.FinalPrice = price.Final
		line.Available = int64(sameBook) <= book.StockQuantity

		out.TotalPrice = out.TotalPrice.Add(price.Final)
		out.TotalDiscount = out.TotalDiscount.Add(price.Original.Sub(price.Final))
		out.Items = append(out.Items, line)
	}
	out.ItemCount = len(out.Items)

	return out, nil
}

// カート内の件数
func (u *CartUsecase) CountItems(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, newError(KindUnauthorized, "unauthorized")
	}

	cart, err := u.carts.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, internalError(err)
	}

	n, err := u.cartItems.CountByCartID(ctx, cart.ID)
	if err != nil {
		return 0, internalError(err)
	}
	return n, nil
}

// CheckAvailability はもう1冊カートに入れられるかを返す
func (u *CartUsecase) CheckAvailability(ctx context.Context, userID int64, bookID int64) (bool, error) {
	if userID <= 0 {
		return false, newError(KindUnauthorized, "unauthorized")
	}
	if bookID <= 0 {
		return false, validationError("invalid book_id")
	}

	book, err := u.books.FindByID(ctx, bookID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, notFound("Book not found")
	}
	if err != nil {
		return false, internalError(err)
	}

	var inCart int64
	cart, err := u.carts.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		inCart, err = u.cartItems.CountByCartAndBook(ctx, cart.ID, bookID)
		if err != nil {
			return false, internalError(err)
		}
	case !errors.Is(err, repo.ErrNotFound):
		return false, internalError(err)
	}

	return inCart < book.StockQuantity, nil
}
