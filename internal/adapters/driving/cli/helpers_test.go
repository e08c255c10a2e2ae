package cli

import (
	"bytes"
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/docindex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driving"
	"github.com/custodia-labs/docindex/internal/core/services"
)

// fakeIngest replays a fixed progress sequence and returns a fixed report.
type fakeIngest struct {
	report    *domain.IngestReport
	err       error
	progress  []domain.IngestProgress
	paths     []string
	listeners []func(domain.IngestProgress)
}

func (f *fakeIngest) Ingest(_ context.Context, path string) (*domain.IngestReport, error) {
	f.paths = append(f.paths, path)
	for _, p := range f.progress {
		for _, fn := range f.listeners {
			fn(p)
		}
	}
	return f.report, f.err
}

func (f *fakeIngest) Status() domain.IngestProgress { return domain.IngestProgress{} }

func (f *fakeIngest) OnProgress(fn func(domain.IngestProgress)) {
	f.listeners = append(f.listeners, fn)
}

// fakeIndex serves fixed index info and run history.
type fakeIndex struct {
	info *domain.IndexInfo
	runs []domain.IngestRun
	err  error
}

func (f *fakeIndex) Info(context.Context) (*domain.IndexInfo, error) { return f.info, f.err }

func (f *fakeIndex) Get(context.Context, string) (*domain.IndexEntry, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeIndex) Recent(context.Context, int) ([]domain.IngestRun, error) { return f.runs, f.err }

type fakeSession struct {
	ingest *fakeIngest
	index  *fakeIndex
	closed bool
}

func (s *fakeSession) Ingest() driving.IngestService {
	if s.ingest == nil {
		return nil
	}
	return s.ingest
}

func (s *fakeSession) Index() driving.IndexService { return s.index }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// testEnv captures what the commands were opened with.
type testEnv struct {
	config    *memory.ConfigStore
	session   *fakeSession
	openErr   error
	settings  *domain.IngestSettings
	indexPath string
}

// setupTestServices installs a memory-backed settings service and fake
// stores. The returned cleanup restores the previous services and flags.
func setupTestServices() (*testEnv, func()) {
	env := &testEnv{
		config: memory.NewConfigStore(nil),
		session: &fakeSession{
			ingest: &fakeIngest{},
			index:  &fakeIndex{info: &domain.IndexInfo{Path: "/tmp/store/index.db"}},
		},
	}
	settings := services.NewSettingsService(env.config, nil).
		WithEnv(func(string) (string, bool) { return "", false })

	prevSettings, prevPath, prevIngest, prevIndex := settingsService, configPath, openIngest, openIndex
	Configure(Dependencies{
		Settings:   settings,
		ConfigPath: "/home/test/.docindex/config.toml",
		OpenIngest: func(_ context.Context, s domain.IngestSettings) (driving.StoreSession, error) {
			env.settings = &s
			if env.openErr != nil {
				return nil, env.openErr
			}
			return env.session, nil
		},
		OpenIndex: func(_ context.Context, path string) (driving.StoreSession, error) {
			env.indexPath = path
			if env.openErr != nil {
				return nil, env.openErr
			}
			return env.session, nil
		},
	})

	return env, func() {
		settingsService, configPath, openIngest, openIndex = prevSettings, prevPath, prevIngest, prevIndex
		resetFlags(rootCmd)
	}
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(args ...string) (string, string, error) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}
