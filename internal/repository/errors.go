package repository

import (
	"github.com/google/uuid"

	"cronsched/internal/apperr"
)

func jobNotFound(id uuid.UUID) error {
	return apperr.NotFoundf("job %s not found", id)
}
