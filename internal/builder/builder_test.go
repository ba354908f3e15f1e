package builder

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/model"
	"flatctl/internal/protocol"
)

// tenFields is a ten-stage builder over positive integers.
func tenFields() *Builder[[10]int] {
	stages := make([]Stage[[10]int], 10)
	for i := range stages {
		i := i
		stages[i] = Stage[[10]int]{
			Name:   fmt.Sprintf("f%d", i),
			Prompt: fmt.Sprintf("Enter f%d", i),
			Apply: func(raw string, d *[10]int) error {
				v, err := strconv.Atoi(raw)
				if err != nil || v <= 0 {
					return ferrors.Field(fmt.Sprintf("f%d", i), "must be a positive integer")
				}
				d[i] = v
				return nil
			},
		}
	}
	return New(stages)
}

// ── Generic state machine ───────────────────────────────────────────

func TestBuilder_TenFieldsToReady(t *testing.T) {
	b := tenFields()
	assert.Equal(t, "Enter f0: ", b.Prompt())

	for i := 0; i < 10; i++ {
		resp := b.SetValue(strconv.Itoa(i + 1))
		require.Equal(t, protocol.Success, resp.Kind, "stage %d", i)
		if i < 9 {
			assert.Equal(t, fmt.Sprintf("Enter f%d: ", i+1), resp.Prompt)
		} else {
			assert.Empty(t, resp.Prompt)
		}
	}

	require.True(t, b.Ready())
	assert.Equal(t, "READY", b.StageName())
	got, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, [10]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
}

func TestBuilder_StageIsMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	b := tenFields()
	prev := b.Stage()

	for i := 0; i < 200 && !b.Ready(); i++ {
		raw := "x"
		if r.Intn(3) == 0 {
			raw = strconv.Itoa(r.Intn(5) + 1)
		}
		resp := b.SetValue(raw)
		if resp.Kind == protocol.Success {
			assert.Equal(t, prev+1, b.Stage())
		} else {
			assert.Equal(t, prev, b.Stage())
		}
		prev = b.Stage()
	}
}

func TestBuilder_InvalidValueIsIdempotent(t *testing.T) {
	b := tenFields()
	b.SetValue("4")

	first := b.SetValue("-1")
	stage, draft := b.Stage(), b.Draft()
	second := b.SetValue("-1")

	assert.Equal(t, protocol.InvalidValue, first.Kind)
	assert.Equal(t, first, second)
	assert.Equal(t, stage, b.Stage())
	assert.Equal(t, draft, b.Draft())
	assert.Equal(t, "Enter f1: ", second.Prompt)
}

func TestBuilder_SetValueAfterReady(t *testing.T) {
	b := New([]Stage[int]{{
		Name:   "only",
		Prompt: "Enter it",
		Apply:  func(_ string, d *int) error { *d = 1; return nil },
	}})
	require.Equal(t, protocol.Success, b.SetValue("a").Kind)

	resp := b.SetValue("b")
	assert.Equal(t, protocol.InvalidStage, resp.Kind)
	assert.Equal(t, 1, b.Stage())
}

func TestBuilder_BuildBeforeReady(t *testing.T) {
	b := tenFields()
	_, err := b.Build()
	assert.Error(t, err)
}

// ── Flat flavors ────────────────────────────────────────────────────

var validFlatLines = []string{
	"loft", "10.5", "-3", "54.5", "2", "11", "park", "enough", "tower", "1999", "20", "6",
}

func TestFlatCreate_FullConversation(t *testing.T) {
	now := time.Date(2024, 5, 17, 12, 30, 0, 0, time.UTC)
	b := NewFlatCreate(func() time.Time { return now })
	require.Equal(t, len(validFlatLines), b.Len())

	for _, line := range validFlatLines {
		resp := b.SetValue(line)
		require.Equal(t, protocol.Success, resp.Kind, "line %q: %s", line, resp.Content)
	}

	f, err := b.Build()
	require.NoError(t, err)
	assert.NoError(t, f.Validate())
	assert.Equal(t, "loft", f.Name)
	assert.Equal(t, model.ViewPark, f.View)
	assert.Equal(t, model.TransportEnough, f.Transport)
	assert.Equal(t, int64(20), f.House.Floors)
	assert.True(t, f.CreationDate.Equal(now))
	assert.Zero(t, f.ID)
}

func TestFlatCreate_RejectsOutOfRange(t *testing.T) {
	b := NewFlatCreate(time.Now)
	b.SetValue("loft")

	for _, raw := range []string{"-817", "abc", "NaN", "+Inf"} {
		resp := b.SetValue(raw)
		assert.Equal(t, protocol.InvalidValue, resp.Kind, raw)
		assert.Contains(t, resp.Content, "coordinates.x")
		assert.Equal(t, 1, b.Stage())
	}
	assert.Equal(t, protocol.Success, b.SetValue("-816").Kind)
}

func TestFlatUpdate_Lookup(t *testing.T) {
	existing := model.Flat{
		ID: 4, Name: "loft", Area: 30, Rooms: 1, TimeToMetro: 5,
		View: model.ViewBad, Transport: model.TransportFew,
		House: model.House{Name: "tower", Year: 1990, Floors: 9, FlatsOnFloor: 4},
	}
	lookup := func(id int64) (model.Flat, error) {
		if id == existing.ID {
			return existing, nil
		}
		return model.Flat{}, fmt.Errorf("flat %d: %w", id, ferrors.ErrNotFound)
	}

	t.Run("format error", func(t *testing.T) {
		b := NewFlatUpdate(lookup)
		resp := b.SetValue("abc")
		assert.Equal(t, protocol.InvalidValue, resp.Kind)
		assert.Contains(t, resp.Content, "format error")
		assert.Equal(t, 0, b.Stage())
	})

	t.Run("missing record", func(t *testing.T) {
		b := NewFlatUpdate(lookup)
		resp := b.SetValue("99")
		assert.Equal(t, protocol.InvalidArgument, resp.Kind)
		assert.Equal(t, "Enter id of the flat to update: ", resp.Prompt)
		assert.Equal(t, 0, b.Stage())
	})

	t.Run("keep and replace", func(t *testing.T) {
		b := NewFlatUpdate(lookup)
		resp := b.SetValue("4")
		require.Equal(t, protocol.Success, resp.Kind)
		assert.Equal(t, "Enter flat name [loft]: ", resp.Prompt)

		require.Equal(t, protocol.Success, b.SetValue("").Kind)
		for b.Stage() < 4 {
			b.SetValue("")
		}
		require.Equal(t, "area", b.StageName())
		require.Equal(t, protocol.Success, b.SetValue("77").Kind)
		for !b.Ready() {
			require.Equal(t, protocol.Success, b.SetValue("").Kind)
		}

		f, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, int64(4), f.ID)
		assert.Equal(t, "loft", f.Name)
		assert.Equal(t, float32(77), f.Area)
		assert.Equal(t, existing.House, f.House)
	})
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = ParseID("0")
	assert.True(t, ferrors.IsFieldError(err))
	_, err = ParseID("12a")
	assert.ErrorContains(t, err, "format error")
}
