package domain

import (
	"fmt"
	"strings"
)

// ParcelKey — канонический 10-символьный идентификатор участка (BBL:
// borough + block + lot). Значение создается только через DeriveParcelKey,
// частичных или "почти валидных" ключей не существует.
type ParcelKey string

const (
	boroughLen = 1
	blockLen   = 5
	lotLen     = 4
	parcelLen  = boroughLen + blockLen + lotLen
)

// Допустимые коды боро Нью-Йорка.
// 1 - Manhattan, 2 - Bronx, 3 - Brooklyn, 4 - Queens, 5 - Staten Island.
var validBoroughs = map[string]bool{
	"1": true,
	"2": true,
	"3": true,
	"4": true,
	"5": true,
}

// RejectionReason — код причины, по которой ключ не может быть выведен.
type RejectionReason string

const (
	RejectInvalidSegment  RejectionReason = "invalid_segment"
	RejectInvalidBorough  RejectionReason = "invalid_borough"
	RejectSegmentOverflow RejectionReason = "segment_overflow"
)

// DerivationError — типизированный отказ вывода ключа. Сохраняет исходные
// "сырые" значения, чтобы их можно было залогировать для ручного разбора.
type DerivationError struct {
	Reason      RejectionReason
	BlockRaw    string
	LotRaw      string
	BoroughHint string
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("parcel key derivation rejected (%s): block=%q lot=%q borough=%q",
		e.Reason, e.BlockRaw, e.LotRaw, e.BoroughHint)
}

// Borough возвращает код боро ключа.
func (k ParcelKey) Borough() string { return string(k[:boroughLen]) }

// Block возвращает пятизначный номер блока (с ведущими нулями).
func (k ParcelKey) Block() string { return string(k[boroughLen : boroughLen+blockLen]) }

// Lot возвращает четырехзначный номер лота (с ведущими нулями).
func (k ParcelKey) Lot() string { return string(k[boroughLen+blockLen:]) }

// DeriveParcelKey строит ParcelKey из "сырых" фрагментов, наскрапленных
// со страницы разрешения. Функция чистая: одни и те же входы всегда дают
// один и тот же ключ или один и тот же отказ.
//
// Порядок проверок:
//  1. block/lot должны быть непустыми и состоять только из цифр;
//  2. boroughHint должен входить в фиксированный набор кодов — подстановка
//     боро "по умолчанию" дает правдоподобный, но неверный ключ, поэтому
//     запрещена;
//  3. block дополняется нулями до 5 цифр, lot — до 4; превышение лимита
//     цифр — отдельный отказ, а не молчаливое усечение.
func DeriveParcelKey(blockRaw, lotRaw, boroughHint string) (ParcelKey, error) {
	block := strings.TrimSpace(blockRaw)
	lot := strings.TrimSpace(lotRaw)
	borough := strings.TrimSpace(boroughHint)

	if !isDigits(block) || !isDigits(lot) {
		return "", &DerivationError{
			Reason:      RejectInvalidSegment,
			BlockRaw:    blockRaw,
			LotRaw:      lotRaw,
			BoroughHint: boroughHint,
		}
	}

	if !validBoroughs[borough] {
		return "", &DerivationError{
			Reason:      RejectInvalidBorough,
			BlockRaw:    blockRaw,
			LotRaw:      lotRaw,
			BoroughHint: boroughHint,
		}
	}

	if len(block) > blockLen || len(lot) > lotLen {
		return "", &DerivationError{
			Reason:      RejectSegmentOverflow,
			BlockRaw:    blockRaw,
			LotRaw:      lotRaw,
			BoroughHint: boroughHint,
		}
	}

	key := borough + zeroPad(block, blockLen) + zeroPad(lot, lotLen)

	// Самопроверка инварианта, а не восстановимая ветка: после валидации
	// выше другая длина означает ошибку в самом коде.
	if len(key) != parcelLen {
		return "", fmt.Errorf("derived parcel key %q has length %d, expected %d", key, len(key), parcelLen)
	}

	return ParcelKey(key), nil
}

// isDigits проверяет, что строка непуста и состоит только из ASCII-цифр.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
