package handler_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutordesk-api/internal/dto"
)

func validatorErrors(t *testing.T) error {
	t.Helper()
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(dto.SubmitFeedbackRequest{})
	require.Error(t, err)
	return err
}
