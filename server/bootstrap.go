package server

import (
	"github.com/kilnworks/go-admin-gate/challenge"
	fakechallengerepo "github.com/kilnworks/go-admin-gate/challenge/repofakes"
	"github.com/kilnworks/go-admin-gate/filestore"
	"github.com/kilnworks/go-admin-gate/guard"
	"github.com/kilnworks/go-admin-gate/internal/config"
	"github.com/kilnworks/go-admin-gate/notify"
	"github.com/kilnworks/go-admin-gate/postgres"
	"github.com/kilnworks/go-admin-gate/principal"
	"github.com/kilnworks/go-admin-gate/session"
	fakesessionrepo "github.com/kilnworks/go-admin-gate/session/repofakes"
	"github.com/kilnworks/go-admin-gate/throttle"
	fakethrottlerepo "github.com/kilnworks/go-admin-gate/throttle/repofakes"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type gateRepos struct {
	throttle  throttle.Repo
	challenge challenge.Repo
	session   session.Repo
}

// Bootstrap wires the full gate from config: storage, transports, the
// throttle ledger, code issuance and verification, session minting, the
// orchestrator, and finally the HTTP server. The returned cleanup
// releases whatever backend was opened.
func Bootstrap(cfg config.Config) (*Server, *guard.Guard, func(), error) {
	p, err := principal.New(cfg.GetAdminEmail(), cfg.GetAdminPhone())
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "[Bootstrap] principal.New")
	}

	repos, cleanup, err := openRepos(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	senders := map[challenge.Channel]challenge.Sender{
		challenge.ChannelEmail: notify.NewSMTPSender(cfg),
		challenge.ChannelSMS:   notify.NewSMSGatewaySender(cfg),
	}

	ledger, err := throttle.NewLedger(repos.throttle, cfg.GetMaxAttempts(), cfg.GetLockoutDuration())
	if err != nil {
		cleanup()
		return nil, nil, nil, errors.Wrap(err, "[Bootstrap] throttle.NewLedger")
	}

	issuer, err := challenge.NewIssuer(repos.challenge, senders, cfg.GetCodeLength(), cfg.GetCodeValidity())
	if err != nil {
		cleanup()
		return nil, nil, nil, errors.Wrap(err, "[Bootstrap] challenge.NewIssuer")
	}

	verifier, err := challenge.NewVerifier(repos.challenge)
	if err != nil {
		cleanup()
		return nil, nil, nil, errors.Wrap(err, "[Bootstrap] challenge.NewVerifier")
	}

	sessions, err := session.NewIssuer(repos.session, []byte(cfg.GetSessionSigningKey()), cfg.GetSessionLifetime())
	if err != nil {
		cleanup()
		return nil, nil, nil, errors.Wrap(err, "[Bootstrap] session.NewIssuer")
	}

	g, err := guard.New(p, guard.Components{
		Ledger:   ledger,
		Issuer:   issuer,
		Verifier: verifier,
		Sessions: sessions,
	}, cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, errors.Wrap(err, "[Bootstrap] guard.New")
	}

	srv, err := New(cfg, g)
	if err != nil {
		cleanup()
		return nil, nil, nil, errors.Wrap(err, "[Bootstrap] server.New")
	}

	return srv, g, cleanup, nil
}

// openRepos picks the storage backend: Postgres when DATABASE_URL is
// set, the JSON file store when STATE_FILE is set, otherwise in-memory.
func openRepos(cfg config.Config) (gateRepos, func(), error) {
	noop := func() {}

	if databaseURL := cfg.GetDatabaseURL(); databaseURL != "" {
		db, err := postgres.Open(databaseURL)
		if err != nil {
			return gateRepos{}, noop, errors.Wrap(err, "[Bootstrap] postgres.Open")
		}
		if err := postgres.RunMigrations(db); err != nil {
			_ = db.Close()
			return gateRepos{}, noop, errors.Wrap(err, "[Bootstrap] postgres.RunMigrations")
		}
		log.Info().Msg("gate state backed by postgres")
		return gateRepos{
			throttle:  postgres.NewThrottleRepo(db),
			challenge: postgres.NewChallengeRepo(db),
			session:   postgres.NewSessionRepo(db),
		}, func() { _ = db.Close() }, nil
	}

	if stateFile := cfg.GetStateFile(); stateFile != "" {
		store, err := filestore.Open(stateFile)
		if err != nil {
			return gateRepos{}, noop, errors.Wrap(err, "[Bootstrap] filestore.Open")
		}
		log.Info().Str("path", stateFile).Msg("gate state backed by file store")
		return gateRepos{
			throttle:  store.ThrottleRepo(),
			challenge: store.ChallengeRepo(),
			session:   store.SessionRepo(),
		}, noop, nil
	}

	log.Warn().Msg("no DATABASE_URL or STATE_FILE configured, gate state is in-memory only")
	return gateRepos{
		throttle:  fakethrottlerepo.NewFakeThrottleRepo(),
		challenge: fakechallengerepo.NewFakeChallengeRepo(),
		session:   fakesessionrepo.NewFakeSessionRepo(),
	}, noop, nil
}
