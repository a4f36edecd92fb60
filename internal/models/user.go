package models

import (
	"golang.org/x/crypto/bcrypt"
)

// User is a tenant-local account belonging to one company.
type User struct {
	UUIDModel
	CompanyID    string `json:"company_id" gorm:"size:36;not null;index"`
	Name         string `json:"name" gorm:"size:255;not null"`
	Email        string `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string `json:"-" gorm:"column:password;size:255;not null"`
	Status       bool   `json:"status" gorm:"not null"`

	Company *Company `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
}

func (u *User) TableName() string {
	return "users"
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword compares in constant time via bcrypt.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u *User) IsActive() bool {
	return u.Status
}
