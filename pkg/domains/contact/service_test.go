package contact

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/entities"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Instance{}, &entities.Contact{}))
	return db
}

func seedInstance(t *testing.T, db *gorm.DB) *entities.Instance {
	t.Helper()
	instance := entities.Instance{Name: "main", ProviderKind: entities.ProviderEmbedded}
	require.NoError(t, db.Create(&instance).Error)
	return &instance
}

func TestCreateContact(t *testing.T) {
	db := testDB(t)
	service := NewService(db)
	instance := seedInstance(t, db)

	created, err := service.Create(context.Background(), dtos.CreateContactDTO{
		InstanceID: instance.ID,
		Name:       "Ana",
		Phone:      "5511999998888",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", created.Name)
	assert.Equal(t, "5511999998888", created.Phone)
}

func TestCreateContactRejectsDuplicatePhone(t *testing.T) {
	db := testDB(t)
	service := NewService(db)
	instance := seedInstance(t, db)

	req := dtos.CreateContactDTO{InstanceID: instance.ID, Name: "Ana", Phone: "5511999998888"}
	_, err := service.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = service.Create(context.Background(), req)
	assert.Error(t, err)
}

func TestCreateContactRejectsUnknownInstance(t *testing.T) {
	db := testDB(t)
	service := NewService(db)

	_, err := service.Create(context.Background(), dtos.CreateContactDTO{
		InstanceID: 999,
		Name:       "Ana",
		Phone:      "5511999998888",
	})
	assert.Error(t, err)
}

func TestListContactsPaginates(t *testing.T) {
	db := testDB(t)
	service := NewService(db)
	instance := seedInstance(t, db)

	for i := 0; i < 12; i++ {
		_, err := service.Create(context.Background(), dtos.CreateContactDTO{
			InstanceID: instance.ID,
			Name:       fmt.Sprintf("Contato %d", i),
			Phone:      fmt.Sprintf("55119999%04d", i),
		})
		require.NoError(t, err)
	}

	first, totalPages, err := service.List(context.Background(), instance.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, totalPages)
	assert.Len(t, first, 10)

	second, _, err := service.List(context.Background(), instance.ID, 2)
	require.NoError(t, err)
	assert.Len(t, second, 2)

	_, _, err = service.List(context.Background(), instance.ID, 5)
	assert.Error(t, err)
}
