package dto

import (
	"time"

	"github.com/torvix/backend/internal/models"
)

// Profile holds the optional physical attributes shared by registration,
// profile updates and the user payload.
type Profile struct {
	BirthDate              *Date                 `json:"birthDate,omitempty"`
	Weight                 *float64              `json:"weight,omitempty" validate:"omitempty,gt=0"`
	WeightMetric           *models.WeightMetric  `json:"weightMetric,omitempty" validate:"omitempty,oneof=kg lbs st"`
	Height                 *float64              `json:"height,omitempty" validate:"omitempty,gt=0"`
	HeightMetric           *models.HeightMetric  `json:"heightMetric,omitempty" validate:"omitempty,oneof=cm ft_in"`
	Gender                 *models.Gender        `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
	ActivityLevel          *models.ActivityLevel `json:"activityLevel,omitempty" validate:"omitempty,oneof=minimal light medium high very_high"`
	WhatDoYouWantToAchieve *models.Goal          `json:"whatDoYouWantToAchieve,omitempty" validate:"omitempty,oneof=lose_fat maintain muscle_gain"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,min=5,max=255,loose_email"`
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Password string `json:"password" validate:"required,min=8,max=255"`
	Profile
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,min=5,max=255,loose_email"`
	Password string `json:"password" validate:"required,min=8,max=255"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,min=5,max=255,loose_email"`
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=255"`
	Profile
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,min=20,max=4096"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,min=20,max=4096"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

type EmailExistsQuery struct {
	Email string `validate:"required,min=5,max=255,loose_email"`
}

type EmailExistsResponse struct {
	Email  string `json:"email"`
	Exists bool   `json:"exists"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Profile
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewUserResponse(u *models.User) UserResponse {
	resp := UserResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Profile: Profile{
			Weight:                 u.Weight,
			WeightMetric:           u.WeightMetric,
			Height:                 u.Height,
			HeightMetric:           u.HeightMetric,
			Gender:                 u.Gender,
			ActivityLevel:          u.ActivityLevel,
			WhatDoYouWantToAchieve: u.Goal,
		},
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
	if u.BirthDate != nil {
		d := NewDate(time.Time(*u.BirthDate))
		resp.BirthDate = &d
	}
	return resp
}
