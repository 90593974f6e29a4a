package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 在庫が足りない
	ErrOutOfStock = errors.New("out of stock")
)
