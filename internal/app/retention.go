package app

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dev-tams/sqlbackup/internal/artifact"
	"github.com/dev-tams/sqlbackup/internal/config"
	"github.com/dev-tams/sqlbackup/internal/storage"
	"github.com/dev-tams/sqlbackup/internal/storage/prunable"
)

type backupEntry struct {
	obj prunable.ObjectInfo
	t   time.Time
}

// ApplyRetention prunes older artifacts of database from st. Sinks that
// cannot list their contents are left alone, as are objects whose names do
// not carry a run timestamp.
func ApplyRetention(ctx context.Context, database string, r config.RetentionConfig, st storage.Sink) error {
	if r.KeepDaily <= 0 && r.KeepWeekly <= 0 && r.KeepMonthly <= 0 {
		return nil
	}

	pr, ok := st.(prunable.Prunable)
	if !ok {
		log.WithFields(log.Fields{"db": database, "sink": st.Name()}).Debug("retention skipped, sink is not prunable")
		return nil
	}

	objects, err := pr.List(ctx, database+"_")
	if err != nil {
		return fmt.Errorf("retention list: %w", err)
	}
	if len(objects) == 0 {
		return nil
	}

	entries := make([]backupEntry, 0, len(objects))
	skipped := 0
	for _, o := range objects {
		t, ok := artifact.ParseTime(database, path.Base(o.Key))
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, backupEntry{obj: o, t: t})
	}

	// newest first
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].t.After(entries[j].t)
	})

	keep := selectKeep(entries, r.KeepDaily, r.KeepWeekly, r.KeepMonthly)

	deleted := 0
	for _, e := range entries {
		if keep[e.obj.Key] {
			continue
		}
		if err := pr.Delete(ctx, e.obj.Key); err != nil {
			return fmt.Errorf("retention delete: %w", err)
		}
		deleted++
	}

	log.WithFields(log.Fields{
		"db":      database,
		"sink":    st.Name(),
		"kept":    len(keep),
		"deleted": deleted,
		"skipped": skipped,
	}).Debug("retention applied")

	return nil
}

func selectKeep(entries []backupEntry, keepDaily, keepWeekly, keepMonthly int) map[string]bool {
	keep := make(map[string]bool, len(entries))

	daily := make(map[string]bool)
	weekly := make(map[string]bool)
	monthly := make(map[string]bool)

	dCount, wCount, mCount := 0, 0, 0

	for _, e := range entries {
		t := e.t

		if keepDaily > 0 && dCount < keepDaily {
			b := t.Format("2006-01-02")
			if !daily[b] {
				daily[b] = true
				keep[e.obj.Key] = true
				dCount++
			}
		}

		// ISO week
		if keepWeekly > 0 && wCount < keepWeekly {
			y, w := t.ISOWeek()
			b := fmt.Sprintf("%04d-W%02d", y, w)
			if !weekly[b] {
				weekly[b] = true
				keep[e.obj.Key] = true
				wCount++
			}
		}

		if keepMonthly > 0 && mCount < keepMonthly {
			b := t.Format("2006-01")
			if !monthly[b] {
				monthly[b] = true
				keep[e.obj.Key] = true
				mCount++
			}
		}

		if (keepDaily <= 0 || dCount >= keepDaily) &&
			(keepWeekly <= 0 || wCount >= keepWeekly) &&
			(keepMonthly <= 0 || mCount >= keepMonthly) {
			break
		}
	}

	return keep
}
