package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	weberrors "github.com/arkilian/weblog/internal/errors"
	"github.com/arkilian/weblog/internal/logging"
	"github.com/arkilian/weblog/internal/storage"
	"github.com/arkilian/weblog/internal/table"
	"github.com/arkilian/weblog/pkg/types"
)

// job is one table file to write.
type job struct {
	layer string
	dir   string
	tbl   *table.Table
	kind  types.ErrorKind
}

func (p *Pipeline) jobs(out *Output) []job {
	cfg := p.cfg
	var jobs []job
	for _, part := range out.Partitions() {
		jobs = append(jobs, job{
			layer: LayerQuarantine,
			dir:   cfg.QuarantineDir,
			tbl:   table.FromQuarantine(part.Kind, part.Rows),
			kind:  part.Kind,
		})
	}
	jobs = append(jobs, job{layer: LayerSilver, dir: cfg.SilverDir, tbl: table.FromSilver(out.Events)})
	for _, tbl := range []*table.Table{
		table.FromGoldEvents(out.GoldEvents),
		table.FromSessions(out.Gold.Sessions),
		table.FromUserStats(out.Gold.UserStats),
		table.FromTopPaths(out.Gold.TopPaths),
		table.FromDeviceUsage(out.Gold.DeviceUsage),
		table.FromSessionsPerDay(out.Gold.SessionsPerDay),
		table.FromFunnel(out.Gold.Funnel),
	} {
		jobs = append(jobs, job{layer: LayerGold, dir: cfg.GoldDir, tbl: tbl})
	}
	return jobs
}

// writeOutputs writes every table and its sidecar concurrently and returns the
// files in job order.
func (p *Pipeline) writeOutputs(ctx context.Context, run types.RunContext, out *Output) ([]types.OutputFile, error) {
	log := logging.Ctx(ctx)
	day := run.DayString()
	jobs := p.jobs(out)
	files := make([]types.OutputFile, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			path := table.Path(j.dir, day, j.tbl.Name, p.writer.Format())
			info, err := p.writer.Write(gctx, j.tbl, path)
			if err != nil {
				return weberrors.NewStorageError(weberrors.CodeWriteFailed,
					fmt.Sprintf("failed to write %s", j.tbl.Name), err)
			}
			sidecar := table.NewSidecar(j.tbl, info, day, run.BatchID, run.IngestionTS)
			sidecarPath, err := table.WriteSidecar(sidecar, path)
			if err != nil {
				return weberrors.NewStorageError(weberrors.CodeWriteFailed,
					fmt.Sprintf("failed to write sidecar of %s", j.tbl.Name), err)
			}

			if j.layer == LayerQuarantine {
				log.Warn().
					Str("error_kind", string(j.kind)).
					Int("rows", j.tbl.Len()).
					Str("path", path).
					Msg("Wrote quarantine partition")
			} else {
				log.Debug().Str("table", j.tbl.Name).Int("rows", j.tbl.Len()).Str("path", path).Msg("Wrote table")
			}

			files[i] = types.OutputFile{
				Layer:       j.layer,
				Table:       j.tbl.Name,
				Path:        path,
				RowCount:    info.RowCount,
				SizeBytes:   info.SizeBytes,
				SidecarPath: sidecarPath,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := p.removeStaleQuarantine(ctx, day, out); err != nil {
		return nil, err
	}
	return files, nil
}

// removeStaleQuarantine deletes quarantine files left by an earlier run of the
// day for kinds that now have no rows.
func (p *Pipeline) removeStaleQuarantine(ctx context.Context, day string, out *Output) error {
	for _, kind := range types.ErrorKinds {
		if len(out.Quarantine[kind]) > 0 {
			continue
		}
		path := table.Path(p.cfg.QuarantineDir, day, table.QuarantineName(kind), p.writer.Format())
		for _, f := range []string{path, table.SidecarPath(path)} {
			err := os.Remove(f)
			if err == nil {
				logging.Ctx(ctx).Debug().Str("path", f).Msg("Removed stale quarantine file")
				continue
			}
			if !os.IsNotExist(err) {
				return weberrors.NewStorageError(weberrors.CodeWriteFailed,
					fmt.Sprintf("failed to remove stale file %s", f), err)
			}
		}
	}
	return nil
}

// publish uploads every file of the run under <prefix>/<layer>/<day>/<file>.
func (p *Pipeline) publish(ctx context.Context, s *Summary) error {
	type upload struct{ local, key string }
	var uploads []upload
	for _, f := range s.Files {
		uploads = append(uploads, upload{f.Path, storage.ObjectKey(p.cfg.Storage.Prefix, f.Layer, s.Day, filepath.Base(f.Path))})
		if f.SidecarPath != "" {
			uploads = append(uploads, upload{f.SidecarPath, storage.ObjectKey(p.cfg.Storage.Prefix, f.Layer, s.Day, filepath.Base(f.SidecarPath))})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, u := range uploads {
		g.Go(func() error {
			if err := p.store.Upload(gctx, u.local, u.key); err != nil {
				return weberrors.NewStorageError(weberrors.CodeUploadFailed,
					fmt.Sprintf("failed to publish %s", u.key), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Kinds without rows this run must not keep an object from an earlier run.
	for _, kind := range types.ErrorKinds {
		if s.Quarantine[kind] > 0 {
			continue
		}
		name := table.QuarantineName(kind) + "." + p.cfg.Extension()
		for _, file := range []string{name, filepath.Base(table.SidecarPath(name))} {
			key := storage.ObjectKey(p.cfg.Storage.Prefix, LayerQuarantine, s.Day, file)
			if err := p.store.Delete(ctx, key); err != nil {
				return weberrors.NewStorageError(weberrors.CodeUploadFailed,
					fmt.Sprintf("failed to remove stale %s", key), err)
			}
		}
	}
	logging.Ctx(ctx).Info().
		Int("objects", len(uploads)).
		Str("prefix", p.cfg.Storage.Prefix).
		Msg("Published outputs")
	return nil
}
