package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	RoleHost  = `host`
	RoleAdmin = `admin`
)

type Claims struct {
	jwt.RegisteredClaims
	UserID         int    `json:"userID"`
	OrganizationID int    `json:"organizationID"`
	Role           string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// IntSlice is stored as a JSON array column (recurring weekday sets).
type IntSlice []int

func (s IntSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *IntSlice) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type %T for IntSlice", src)
	}
}

// Contains reports whether d is in the set.
func (s IntSlice) Contains(d int) bool {
	for _, v := range s {
		if v == d {
			return true
		}
	}
	return false
}
