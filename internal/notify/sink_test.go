package notify

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rowanlabs/cloudbrief/internal/models"
)

// fakeSink records sent ids and fails ids listed in failIDs.
type fakeSink struct {
	name    string
	failIDs map[string]bool
	sent    []string
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(_ context.Context, v models.Verdict) error {
	if f.failIDs[v.Announcement.ID] {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, v.Announcement.ID)
	return nil
}

func verdict(id string, relevant bool) models.Verdict {
	return models.Verdict{
		Announcement: models.Announcement{ID: id, Title: "title " + id},
		Relevant:     relevant,
	}
}

func TestDispatcherDeliver(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers relevant verdicts to every sink", func(t *testing.T) {
		primary := &fakeSink{name: "primary"}
		secondary := &fakeSink{name: "secondary"}
		d := NewDispatcher(primary, secondary)

		report := d.Deliver(ctx, []models.Verdict{
			verdict("a", true),
			verdict("b", false),
			verdict("c", true),
		})

		want := []string{"a", "c"}
		if !reflect.DeepEqual(primary.sent, want) {
			t.Errorf("primary sent %v, want %v", primary.sent, want)
		}
		if !reflect.DeepEqual(secondary.sent, want) {
			t.Errorf("secondary sent %v, want %v", secondary.sent, want)
		}
		if !reflect.DeepEqual(report.DeliveredIDs, want) {
			t.Errorf("delivered ids %v, want %v", report.DeliveredIDs, want)
		}
		if report.Failed() {
			t.Error("report should not show failures")
		}
	})

	t.Run("primary failures are excluded from delivered ids", func(t *testing.T) {
		primary := &fakeSink{name: "primary", failIDs: map[string]bool{"b": true}}
		d := NewDispatcher(primary)

		report := d.Deliver(ctx, []models.Verdict{
			verdict("a", true),
			verdict("b", true),
			verdict("c", true),
		})

		want := []string{"a", "c"}
		if !reflect.DeepEqual(report.DeliveredIDs, want) {
			t.Errorf("delivered ids %v, want %v", report.DeliveredIDs, want)
		}
		if !report.Failed() {
			t.Error("report should show a failure")
		}
		if report.Results[0].Delivered != 2 || report.Results[0].Failed != 1 {
			t.Errorf("unexpected tally: %+v", report.Results[0])
		}
	})

	t.Run("secondary failure does not affect delivered ids", func(t *testing.T) {
		primary := &fakeSink{name: "primary"}
		secondary := &fakeSink{name: "secondary", failIDs: map[string]bool{"a": true}}
		d := NewDispatcher(primary, secondary)

		report := d.Deliver(ctx, []models.Verdict{verdict("a", true)})

		if !reflect.DeepEqual(report.DeliveredIDs, []string{"a"}) {
			t.Errorf("delivered ids %v, want [a]", report.DeliveredIDs)
		}
		if !report.Failed() {
			t.Error("report should show the secondary failure")
		}
	})

	t.Run("empty batch produces empty tallies", func(t *testing.T) {
		primary := &fakeSink{name: "primary"}
		d := NewDispatcher(primary)

		report := d.Deliver(ctx, nil)

		if len(report.DeliveredIDs) != 0 {
			t.Errorf("delivered ids %v, want none", report.DeliveredIDs)
		}
		if len(report.Results) != 1 || report.Results[0].Delivered != 0 {
			t.Errorf("unexpected results: %+v", report.Results)
		}
	})
}
