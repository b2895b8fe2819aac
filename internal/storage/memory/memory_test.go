package memory

import (
	"testing"

	"budgeteer/internal/storage"
	"budgeteer/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository { return New() })
}
