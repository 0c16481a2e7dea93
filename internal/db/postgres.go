package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonvale/moonmud/internal/model"
)

// pgErrStringTruncation is the SQLSTATE for a value exceeding its
// column size.
const pgErrStringTruncation = "22001"

// Postgres implements Store over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// Connect opens a pool against dsn and pings it.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Pool returns the underlying pgx pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

func wrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrStringTruncation {
		return fmt.Errorf("%s: %w", op, ErrValueTooLong)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Postgres) UserByName(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := p.pool.QueryRow(ctx,
		`SELECT id, username, password FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %q: %w", username, err)
	}
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (username, password) VALUES ($1, $2) RETURNING id`,
		u.Username, u.PasswordHash,
	).Scan(&u.ID)
	return wrapWrite(fmt.Sprintf("creating user %q", u.Username), err)
}

func (p *Postgres) DeleteUser(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return wrapWrite(fmt.Sprintf("deleting user %d", id), err)
}

func (p *Postgres) PlayerByUser(ctx context.Context, userID int64) (*model.Player, error) {
	var pl model.Player
	err := p.pool.QueryRow(ctx,
		`SELECT id, user_id, entity_id FROM players WHERE user_id = $1`, userID,
	).Scan(&pl.ID, &pl.UserID, &pl.EntityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying player for user %d: %w", userID, err)
	}
	return &pl, nil
}

func (p *Postgres) CreatePlayer(ctx context.Context, pl *model.Player) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO players (user_id, entity_id) VALUES ($1, $2) RETURNING id`,
		pl.UserID, pl.EntityID,
	).Scan(&pl.ID)
	return wrapWrite(fmt.Sprintf("creating player for user %d", pl.UserID), err)
}

func (p *Postgres) DeletePlayer(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	return wrapWrite(fmt.Sprintf("deleting player %d", id), err)
}

func (p *Postgres) CreateBank(ctx context.Context, b *model.Bank) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO banks (player_id) VALUES ($1) RETURNING id`, b.PlayerID,
	).Scan(&b.ID)
	return wrapWrite(fmt.Sprintf("creating bank for player %d", b.PlayerID), err)
}

func (p *Postgres) Rooms(ctx context.Context) ([]*model.Room, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, file_name FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	return collect(rows, func(row pgx.Rows) (*model.Room, error) {
		var r model.Room
		err := row.Scan(&r.ID, &r.Name, &r.FileName)
		return &r, err
	})
}

func (p *Postgres) Entities(ctx context.Context) ([]*model.Entity, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, typename, name FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	return collect(rows, func(row pgx.Rows) (*model.Entity, error) {
		var e model.Entity
		err := row.Scan(&e.ID, &e.Typename, &e.Name)
		return &e, err
	})
}

func (p *Postgres) CreateEntity(ctx context.Context, e *model.Entity) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO entities (typename, name) VALUES ($1, $2) RETURNING id`,
		e.Typename, e.Name,
	).Scan(&e.ID)
	return wrapWrite(fmt.Sprintf("creating entity %q", e.Name), err)
}

func (p *Postgres) DeleteEntity(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	return wrapWrite(fmt.Sprintf("deleting entity %d", id), err)
}

func (p *Postgres) Items(ctx context.Context) ([]*model.Item, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, entity_id, max_stack_amt FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	return collect(rows, func(row pgx.Rows) (*model.Item, error) {
		var i model.Item
		err := row.Scan(&i.ID, &i.EntityID, &i.MaxStackAmt)
		return &i, err
	})
}

func (p *Postgres) Portals(ctx context.Context) ([]*model.Portal, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, entity_id, linked_room_id, linked_y, linked_x FROM portals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying portals: %w", err)
	}
	return collect(rows, func(row pgx.Rows) (*model.Portal, error) {
		var pt model.Portal
		err := row.Scan(&pt.ID, &pt.EntityID, &pt.LinkedRoomID, &pt.LinkedY, &pt.LinkedX)
		return &pt, err
	})
}

func (p *Postgres) ResourceNodes(ctx context.Context) ([]*model.ResourceNode, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, entity_id, droptable_id FROM resource_nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying resource nodes: %w", err)
	}
	return collect(rows, func(row pgx.Rows) (*model.ResourceNode, error) {
		var n model.ResourceNode
		err := row.Scan(&n.ID, &n.EntityID, &n.DropTableID)
		return &n, err
	})
}

func (p *Postgres) DropTableItems(ctx context.Context, dropTableID int64) ([]*model.DropTableItem, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, droptable_id, item_id, chance, min_amt, max_amt
		 FROM droptable_items WHERE droptable_id = $1 ORDER BY id`, dropTableID)
	if err != nil {
		return nil, fmt.Errorf("querying droptable %d: %w", dropTableID, err)
	}
	return collect(rows, func(row pgx.Rows) (*model.DropTableItem, error) {
		var d model.DropTableItem
		err := row.Scan(&d.ID, &d.DropTableID, &d.ItemID, &d.Chance, &d.MinAmt, &d.MaxAmt)
		return &d, err
	})
}

func (p *Postgres) Instances(ctx context.Context) ([]*model.Instance, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, entity_id, room_id, y, x, amount, respawn_time FROM instances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying instances: %w", err)
	}
	return collect(rows, func(row pgx.Rows) (*model.Instance, error) {
		var i model.Instance
		err := row.Scan(&i.ID, &i.EntityID, &i.RoomID, &i.Y, &i.X, &i.Amount, &i.RespawnTime)
		return &i, err
	})
}

func (p *Postgres) InstanceByEntity(ctx context.Context, entityID int64) (*model.Instance, error) {
	var i model.Instance
	err := p.pool.QueryRow(ctx,
		`SELECT id, entity_id, room_id, y, x, amount, respawn_time
		 FROM instances WHERE entity_id = $1`, entityID,
	).Scan(&i.ID, &i.EntityID, &i.RoomID, &i.Y, &i.X, &i.Amount, &i.RespawnTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying instance for entity %d: %w", entityID, err)
	}
	return &i, nil
}

func (p *Postgres) CreateInstance(ctx context.Context, inst *model.Instance) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO instances (entity_id, room_id, y, x, amount, respawn_time)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		inst.EntityID, inst.RoomID, inst.Y, inst.X, inst.Amount, inst.RespawnTime,
	).Scan(&inst.ID)
	return wrapWrite(fmt.Sprintf("creating instance for entity %d", inst.EntityID), err)
}

func (p *Postgres) UpdateInstance(ctx context.Context, inst *model.Instance) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE instances SET room_id = $1, y = $2, x = $3, amount = $4 WHERE id = $5`,
		inst.RoomID, inst.Y, inst.X, inst.Amount, inst.ID,
	)
	return wrapWrite(fmt.Sprintf("updating instance %d", inst.ID), err)
}

func (p *Postgres) DeleteInstance(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM instances WHERE id = $1`, id)
	return wrapWrite(fmt.Sprintf("deleting instance %d", id), err)
}

func (p *Postgres) InventoryByPlayer(ctx context.Context, playerID int64) ([]*model.InventoryItem, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, player_id, item_id, amount
		 FROM inventory_items WHERE player_id = $1 ORDER BY id`, playerID)
	if err != nil {
		return nil, fmt.Errorf("querying inventory for player %d: %w", playerID, err)
	}
	return collect(rows, func(row pgx.Rows) (*model.InventoryItem, error) {
		var ii model.InventoryItem
		err := row.Scan(&ii.ID, &ii.PlayerID, &ii.ItemID, &ii.Amount)
		return &ii, err
	})
}

func (p *Postgres) CreateInventoryItem(ctx context.Context, ii *model.InventoryItem) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO inventory_items (player_id, item_id, amount)
		 VALUES ($1, $2, $3) RETURNING id`,
		ii.PlayerID, ii.ItemID, ii.Amount,
	).Scan(&ii.ID)
	return wrapWrite(fmt.Sprintf("creating inventory item for player %d", ii.PlayerID), err)
}

func (p *Postgres) UpdateInventoryItem(ctx context.Context, ii *model.InventoryItem) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE inventory_items SET amount = $1 WHERE id = $2`, ii.Amount, ii.ID)
	return wrapWrite(fmt.Sprintf("updating inventory item %d", ii.ID), err)
}

func (p *Postgres) DeleteInventoryItem(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	return wrapWrite(fmt.Sprintf("deleting inventory item %d", id), err)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}
