// Package runner sequences one check: fetch, compare, notify, persist.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ratewatch/internal/change"
	"ratewatch/internal/config"
	"ratewatch/internal/metrics"
	"ratewatch/internal/notify"
	"ratewatch/internal/rates"
	"ratewatch/internal/snapshot"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFetch   = 1
	ExitFatal   = 2
	ExitPersist = 3
)

type Notifier interface {
	Notify(ctx context.Context, a notify.Alert) error
}

// Runner holds everything a run needs. Fields are set once at startup.
type Runner struct {
	Products []config.Product
	Loan     config.Loan
	Source   rates.Source
	Store    snapshot.Store
	// Notifier may be nil, in which case changes are only logged.
	Notifier Notifier
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// Result summarizes one run.
type Result struct {
	RunID       string
	Fetched     map[string]rates.Quote
	Changes     []change.Record
	FetchErrors []error
	Notified    bool
	NotifyErr   error
	Persisted   bool
}

// Run performs a single check. A product that fails to fetch is skipped and
// keeps its stored value; the failure is reported in the returned error once
// every product has been tried. A notification failure is only logged.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString(), Fetched: map[string]rates.Quote{}}
	log := r.logger().WithField("run_id", res.RunID)
	now := r.now()
	log.WithField("checked_at", now.Format(time.RFC3339)).Info("checking mortgage rates")

	prev, err := r.Store.Load(ctx)
	if err != nil {
		log.WithError(err).Error("cannot read previous snapshot")
		return res, err
	}
	if len(prev) == 0 {
		log.Info("no previous snapshot, treating every product as new")
	}

	var current []notify.Line
	for _, p := range r.Products {
		plog := log.WithField("product", p.ID)
		q, err := r.Source.Fetch(ctx, rates.NewRequest(p, r.Loan))
		if err != nil {
			var fe *rates.FetchError
			if !errors.As(err, &fe) {
				err = &rates.FetchError{ProductID: p.ID, Err: err}
			}
			plog.WithError(err).Error("fetch failed")
			r.Metrics.FetchFailed(p.ID)
			res.FetchErrors = append(res.FetchErrors, err)
			continue
		}
		q.ProductID = p.ID
		fields := logrus.Fields{"rate": q.Rate, "product_type": q.ProductType}
		if q.APR != nil {
			fields["apr"] = *q.APR
		}
		if q.Points != nil {
			fields["points"] = *q.Points
		}
		plog.WithFields(fields).Info("fetched rate")
		r.Metrics.FetchOK(p.ID, q.Rate)
		res.Fetched[p.ID] = q
		current = append(current, notify.Line{Name: p.Name, Quote: q})
	}

	res.Changes = change.Detect(detectOrder(r.Products), res.Fetched, prev)
	r.Metrics.Changed(len(res.Changes))
	if len(res.Changes) > 0 {
		log.WithField("changes", len(res.Changes)).Info("rates have changed, sending notification")
		res.Notified, res.NotifyErr = r.notify(ctx, log, notify.Alert{Changes: res.Changes, Current: current, CheckedAt: now})
	} else if len(res.Fetched) > 0 {
		log.Info("rates unchanged, no notification needed")
	}

	var persistErr error
	if len(res.Fetched) > 0 {
		next := Supersede(r.Products, prev, res.Fetched, now)
		if err := r.Store.Save(ctx, next); err != nil {
			log.WithError(err).Error("cannot persist snapshot")
			r.Metrics.PersistFailed()
			persistErr = err
		} else {
			res.Persisted = true
			log.WithField("products", len(next)).Info("saved snapshot")
		}
	} else {
		log.Error("no rates fetched, snapshot left untouched")
	}

	r.Metrics.Finished(r.now())
	return res, errors.Join(append([]error{persistErr}, res.FetchErrors...)...)
}

func (r *Runner) notify(ctx context.Context, log logrus.FieldLogger, a notify.Alert) (bool, error) {
	if r.Notifier == nil {
		log.Warn("no notifier configured, skipping email notification")
		r.Metrics.Notified("skipped")
		return false, nil
	}
	err := r.Notifier.Notify(ctx, a)
	switch {
	case errors.Is(err, notify.ErrMissingCredentials):
		log.Warn("email credentials not configured, skipping email notification; set GMAIL_USER, GMAIL_APP_PASSWORD and ALERT_EMAIL")
		r.Metrics.Notified("skipped")
		return false, err
	case err != nil:
		log.WithError(err).Warn("notification failed, snapshot will still be saved")
		r.Metrics.Notified("error")
		return false, err
	}
	log.Info("alert email sent")
	r.Metrics.Notified("sent")
	return true, nil
}

// Supersede builds the snapshot that replaces prev: fetched products get a
// fresh entry, configured products that were not fetched keep their old one,
// and products no longer configured are dropped.
func Supersede(products []config.Product, prev snapshot.Snapshot, fetched map[string]rates.Quote, now time.Time) snapshot.Snapshot {
	next := make(snapshot.Snapshot, len(products))
	for _, p := range products {
		if q, ok := fetched[p.ID]; ok {
			at := q.ReceivedAt
			if at.IsZero() {
				at = now
			}
			next[p.ID] = snapshot.Entry{
				Rate:         q.Rate,
				FeesOrPoints: q.Points,
				APR:          q.APR,
				ObservedAt:   at.UTC(),
			}
			continue
		}
		if old, ok := prev[p.ID]; ok {
			next[p.ID] = old
		}
	}
	return next
}

// ExitCode maps a Run error to the process exit status. A persistence
// failure wins over fetch failures since it breaks the next run too.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var pe *snapshot.PersistError
	if errors.As(err, &pe) {
		return ExitPersist
	}
	var fe *rates.FetchError
	if errors.As(err, &fe) {
		return ExitFetch
	}
	return ExitFatal
}

func detectOrder(products []config.Product) []change.Product {
	out := make([]change.Product, len(products))
	for i, p := range products {
		out[i] = change.Product{ID: p.ID, Name: p.Name}
	}
	return out
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
