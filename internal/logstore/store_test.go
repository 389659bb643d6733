package logstore_test

import (
	"context"
	"testing"

	"labdesk/internal/apperr"
	"labdesk/internal/logstore"
	"labdesk/internal/models"
	"labdesk/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndFindBySet(t *testing.T) {
	db := testutil.NewDB(t)
	store := logstore.New()
	ctx := context.Background()

	rec := &models.PaversLog{
		LogBase:      models.LogBase{SampleID: 1, SampleSetID: 10},
		SampleSerial: "P1,P2",
		PaverType:    "interlock",
	}
	require.NoError(t, store.Write(ctx, db, rec))
	assert.NotZero(t, rec.ID)

	got, err := store.FindBySet(ctx, db, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.LogPavers, got.Kind())
	assert.Equal(t, rec.ID, got.RecordID())
	assert.Equal(t, "P1,P2", got.(*models.PaversLog).SampleSerial)

	missing, err := store.FindBySet(ctx, db, 11)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWriteRejectsSecondRecordForSet(t *testing.T) {
	db := testutil.NewDB(t)
	store := logstore.New()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, db, &models.ConcreteCubeLog{
		LogBase: models.LogBase{SampleID: 1, SampleSetID: 5},
	}))

	// a different table still counts
	err := store.Write(ctx, db, &models.ProjectsLog{
		LogBase: models.LogBase{SampleID: 1, SampleSetID: 5},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	var n int64
	db.Model(&models.ProjectsLog{}).Count(&n)
	assert.Zero(t, n)
}

func TestListBySample(t *testing.T) {
	db := testutil.NewDB(t)
	store := logstore.New()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, db, &models.ProjectsLog{LogBase: models.LogBase{SampleID: 2, SampleSetID: 1}}))
	require.NoError(t, store.Write(ctx, db, &models.ConcreteCubeLog{LogBase: models.LogBase{SampleID: 2, SampleSetID: 2}}))
	require.NoError(t, store.Write(ctx, db, &models.ConcreteCubeLog{LogBase: models.LogBase{SampleID: 3, SampleSetID: 3}}))

	recs, err := store.ListBySample(ctx, db, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.LogConcreteCube, recs[0].Kind())
	assert.Equal(t, models.LogProjects, recs[1].Kind())
}
