package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliria/erp-backend/pkg/db/dbtest"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
)

func TestEmitStoresDecodableEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	w := NewWriter(NewRepository(conn), nil)
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	eventID := uuid.New()
	w.clock = func() time.Time { return fixed }
	w.newID = func() uuid.UUID { return eventID }

	productID := uuid.New()
	actor := &Actor{UserID: uuid.New(), Role: "owner"}
	require.NoError(t, w.Emit(context.Background(), conn, Event{
		Type:          enums.EventProductCreated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Actor:         actor,
		Data:          map[string]string{"code": "001-0001"},
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	assert.Equal(t, enums.EventProductCreated, row.EventType)
	assert.Equal(t, productID, row.AggregateID)

	env, err := Decode(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, eventID, env.EventID)
	assert.Equal(t, SchemaVersion, env.Version)
	assert.True(t, env.OccurredAt.Equal(fixed))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Equal(t, actor.UserID, env.Actor.UserID)

	var data map[string]string
	require.NoError(t, env.Bind(&data))
	assert.Equal(t, "001-0001", data["code"])
}

func TestEmitValidatesEvent(t *testing.T) {
	conn := dbtest.Open(t)
	w := NewWriter(NewRepository(conn), nil)
	ctx := context.Background()
	valid := Event{Type: enums.EventLowStock, AggregateType: enums.AggregateProduct, AggregateID: uuid.New(), Data: struct{}{}}

	for name, mutate := range map[string]func(*Event){
		"type":         func(e *Event) { e.Type = "stock.teleported" },
		"aggregate":    func(e *Event) { e.AggregateType = "planet" },
		"aggregate id": func(e *Event) { e.AggregateID = uuid.Nil },
		"data":         func(e *Event) { e.Data = nil },
	} {
		ev := valid
		mutate(&ev)
		assert.Error(t, w.Emit(ctx, conn, ev), name)
	}
	assert.ErrorIs(t, w.Emit(ctx, nil, valid), errTxRequired)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}
