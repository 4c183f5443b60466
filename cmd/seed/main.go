// Command seed populates a freshly migrated database with a minimal
// working tenant: one plan, one owner, one station with a pump/nozzle/tank,
// and a manager so the HTTP API has something to log into immediately
// after cmd/migrate runs. Every insert is ON CONFLICT DO NOTHING against a
// fixed id, so re-running seed against an already-seeded database is safe.
package main

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/config"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/logger"
)

var (
	seedPlanID    = idgen.MustParse("00000000-0000-0000-0000-000000000001")
	seedOwnerID   = idgen.MustParse("00000000-0000-0000-0000-000000000002")
	seedManagerID = idgen.MustParse("00000000-0000-0000-0000-000000000003")
	seedStationID = idgen.MustParse("00000000-0000-0000-0000-000000000004")
	seedPumpID    = idgen.MustParse("00000000-0000-0000-0000-000000000005")
	seedNozzleID  = idgen.MustParse("00000000-0000-0000-0000-000000000006")
	seedTankID    = idgen.MustParse("00000000-0000-0000-0000-000000000007")
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	pool, err := dbx.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database pool")
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := seed(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().
		Str("owner_email", "owner@fuelsync.local").
		Str("manager_email", "manager@fuelsync.local").
		Str("password", "changeme123").
		Msg("seed applied")
}

func seed(ctx context.Context, pool *dbx.Pool) error {
	return pool.WithTransaction(ctx, func(tx dbx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO plans (
				id, name, max_stations, max_pumps_per_station, max_nozzles_per_pump,
				max_employees, max_creditors, backdated_days, monthly_export_quota,
				monthly_report_quota, monthly_manual_entry_quota, retention_sales_days,
				retention_profit_days, retention_analytics_days, retention_audit_days,
				retention_transactions_days, can_export, can_track_expenses,
				can_track_credits, can_view_profit_loss
			) VALUES (
				$1, 'starter', 3, 6, 4, 10, 25, 7, 20, 20, 500, 365, 365, 180, 365, 365,
				true, true, true, true
			) ON CONFLICT (id) DO NOTHING`, seedPlanID); err != nil {
			return err
		}

		ownerHash, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, credential_hash, display_name, role, plan_id, active)
			VALUES ($1, 'owner@fuelsync.local', $2, 'Demo Owner', 'owner', $3, true)
			ON CONFLICT (id) DO NOTHING`, seedOwnerID, string(ownerHash), seedPlanID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stations (
				id, name, code, contact, owner_id, brand, shift_required_for_reading,
				alert_on_missed_reading_days
			) VALUES ($1, 'Demo Station', 'DEMO-1', '+10000000000', $2, 'Independent', true, 2)
			ON CONFLICT (id) DO NOTHING`, seedStationID, seedOwnerID); err != nil {
			return err
		}

		managerHash, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, credential_hash, display_name, role, station_id, created_by, active)
			VALUES ($1, 'manager@fuelsync.local', $2, 'Demo Manager', 'manager', $3, $4, true)
			ON CONFLICT (id) DO NOTHING`, seedManagerID, string(managerHash), seedStationID, seedOwnerID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pumps (id, station_id, display_name, pump_number, status)
			VALUES ($1, $2, 'Pump 1', 1, 'active')
			ON CONFLICT (id) DO NOTHING`, seedPumpID, seedStationID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nozzles (id, pump_id, nozzle_number, fuel_type, status, initial_reading)
			VALUES ($1, $2, 1, 'petrol', 'active', 0)
			ON CONFLICT (id) DO NOTHING`, seedNozzleID, seedPumpID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tanks (
				id, station_id, fuel_type, display_name, capacity, current_level, tracking_mode
			) VALUES ($1, $2, 'petrol', 'Tank 1', 20000, 12000, 'strict')
			ON CONFLICT (id) DO NOTHING`, seedTankID, seedStationID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO fuel_prices (id, station_id, fuel_type, selling_price, cost_price, effective_from)
			VALUES ($1, $2, 'petrol', 102.50, 96.00, date_trunc('day', now()))
			ON CONFLICT DO NOTHING`, idgen.New(), seedStationID)
		return err
	})
}
