package handler

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddValidations(t *testing.T) {
	v := validator.New()
	require.NoError(t, addValidations(v))

	tests := []struct {
		name    string
		value   string
		tag     string
		wantErr bool
	}{
		{name: "strong password", value: "Abc12345!", tag: "password"},
		{name: "password without symbol", value: "Abc123456", tag: "password", wantErr: true},
		{name: "password without upper case", value: "abc12345!", tag: "password", wantErr: true},
		{name: "name with space", value: "Thomas Anderson", tag: "personname"},
		{name: "name with digit", value: "Neo1", tag: "personname", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Var(tt.value, tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterValidations_GinEngine(t *testing.T) {
	require.NotPanics(t, registerValidations)

	type req struct {
		Password string `binding:"password"`
	}
	assert.Error(t, binding.Validator.ValidateStruct(&req{Password: "weak"}))
	assert.NoError(t, binding.Validator.ValidateStruct(&req{Password: "Abc12345!"}))
}
