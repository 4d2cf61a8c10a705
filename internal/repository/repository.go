package repository

import (
	"errors"

	"github.com/AtoyanMikhail/deviceauth/internal/repository/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type (
	Queries = models.Queries
	Store   = models.Store
)
