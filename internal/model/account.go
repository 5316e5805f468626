// Package model はドメインモデルを定義する。
package model

import "time"

// OTP はワンタイムパスワードの値と有効期限を表す。
// アカウント上でnilの場合は「有効なコードなし」を意味する。
type OTP struct {
	Code      string
	ExpiresAt time.Time
}

// Expired は指定時刻において有効期限を過ぎているかを判定する。
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Account はサービス利用アカウントを表す。
// Emailはアカウントを一意に識別する（大文字小文字を区別する）。
type Account struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	IsVerified      bool
	VerificationOTP *OTP
	ResetOTP        *OTP
	Pet             string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Pet はダッシュボードに表示するコンパニオンの種類を表す。
const (
	PetCat    = "cat"
	PetBunny  = "bunny"
	PetDog    = "dog"
	PetTurtle = "turtle"
)

// ValidPet は選択可能なコンパニオンかどうかを判定する。
func ValidPet(pet string) bool {
	switch pet {
	case PetCat, PetBunny, PetDog, PetTurtle:
		return true
	default:
		return false
	}
}
