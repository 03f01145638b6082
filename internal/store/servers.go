package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"synapsechat-backend/internal/models"
	"synapsechat-backend/internal/snowflake"

	"github.com/samber/lo"
)

const (
	inviteCodeLength  = 8
	inviteCodeRetries = 5
)

// NewInviteCode generates invite codes, replaced in tests.
var NewInviteCode = func() string {
	return lo.RandomString(inviteCodeLength, lo.AlphanumericCharset)
}

// CreateServer inserts server with a fresh unique invite code and makes the owner its first
// member. channels are inserted in the same transaction.
func (s *Store) CreateServer(ctx context.Context, server *models.Server, channels ...NewChannel) error {
	for range inviteCodeRetries {
		server.InviteCode = NewInviteCode()

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO servers (id, owner_id, name, invite_code, icon_url) VALUES (?, ?, ?, ?, ?)",
				server.ID, server.OwnerID, server.Name, server.InviteCode, nullString(server.IconURL))
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, "INSERT INTO server_members (server_id, user_id) VALUES (?, ?)", server.ID, server.OwnerID)
			if err != nil {
				return err
			}

			for _, newChannel := range channels {
				newChannel.Channel.ServerID = server.ID
				err = insertChannel(ctx, tx, newChannel)
				if err != nil {
					return err
				}
			}
			return nil
		})
		if isUniqueViolation(err) {
			continue
		} else if err != nil {
			return err
		}

		server.Members = []string{strconv.FormatInt(server.OwnerID, 10)}
		server.CreatedAt = snowflake.Time(server.ID)
		return nil
	}

	return fmt.Errorf("couldn't generate a unique invite code after %d attempts", inviteCodeRetries)
}

const serverColumns = "s.id, s.owner_id, s.name, s.invite_code, s.icon_url"

func scanServer(scan func(dest ...any) error) (models.Server, error) {
	var server models.Server
	var iconURL sql.NullString

	err := scan(&server.ID, &server.OwnerID, &server.Name, &server.InviteCode, &iconURL)
	if err != nil {
		return server, err
	}

	server.IconURL = iconURL.String
	server.CreatedAt = snowflake.Time(server.ID)
	return server, nil
}

func (s *Store) GetServer(ctx context.Context, serverID int64) (*models.Server, error) {
	server, err := scanServer(s.db.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers s WHERE s.id = ?", serverID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	server.Members, err = s.memberIDs(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	return &server, nil
}

func (s *Store) memberIDs(ctx context.Context, serverID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM server_members WHERE server_id = ? ORDER BY since, user_id", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		members = append(members, strconv.FormatInt(uid, 10))
	}
	return members, rows.Err()
}

// JoinServer adds uid to the server owning code.
func (s *Store) JoinServer(ctx context.Context, code string, uid int64) (*models.Server, error) {
	server, err := scanServer(s.db.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers s WHERE s.invite_code = ?", strings.TrimSpace(code)).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInviteNotFound
	} else if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, "INSERT INTO server_members (server_id, user_id) VALUES (?, ?)", server.ID, uid)
	if isUniqueViolation(err) {
		return &server, ErrAlreadyMember
	} else if err != nil {
		return nil, err
	}

	server.Members, err = s.memberIDs(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	return &server, nil
}

// ListServers returns the servers uid is a member of, invite codes are only kept for owned servers.
func (s *Store) ListServers(ctx context.Context, uid int64) ([]models.Server, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+serverColumns+" FROM servers s JOIN server_members m ON s.id = m.server_id WHERE m.user_id = ? ORDER BY s.id", uid)
	if err != nil {
		return nil, err
	}

	servers := []models.Server{}
	for rows.Next() {
		server, err := scanServer(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		servers = append(servers, server)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range servers {
		if servers[i].OwnerID != uid {
			servers[i].InviteCode = ""
		}
		servers[i].Members, err = s.memberIDs(ctx, servers[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return servers, nil
}

func (s *Store) IsServerOwner(ctx context.Context, serverID int64, uid int64) (bool, error) {
	var ownsServer bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM servers WHERE id = ? AND owner_id = ?)", serverID, uid).Scan(&ownsServer)
	return ownsServer, err
}

func (s *Store) IsServerMember(ctx context.Context, serverID int64, uid int64) (bool, error) {
	var isMember bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ?)", serverID, uid).Scan(&isMember)
	return isMember, err
}

func (s *Store) requireOwner(ctx context.Context, serverID int64, uid int64) error {
	var ownerID int64
	err := s.db.QueryRowContext(ctx, "SELECT owner_id FROM servers WHERE id = ?", serverID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	} else if err != nil {
		return err
	}

	if ownerID != uid {
		return ErrNotOwner
	}
	return nil
}

func (s *Store) DeleteServer(ctx context.Context, serverID int64, uid int64) error {
	err := s.requireOwner(ctx, serverID, uid)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM servers WHERE id = ? AND owner_id = ?", serverID, uid)
	return err
}

func (s *Store) RenameServer(ctx context.Context, serverID int64, uid int64, name string) error {
	err := s.requireOwner(ctx, serverID, uid)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, "UPDATE servers SET name = ? WHERE id = ?", name, serverID)
	return err
}

func (s *Store) RegenerateInviteCode(ctx context.Context, serverID int64, uid int64) (string, error) {
	err := s.requireOwner(ctx, serverID, uid)
	if err != nil {
		return "", err
	}

	for range inviteCodeRetries {
		code := NewInviteCode()
		_, err = s.db.ExecContext(ctx, "UPDATE servers SET invite_code = ? WHERE id = ?", code, serverID)
		if isUniqueViolation(err) {
			continue
		} else if err != nil {
			return "", err
		}
		return code, nil
	}

	return "", fmt.Errorf("couldn't generate a unique invite code after %d attempts", inviteCodeRetries)
}

// ListMembers returns public profiles of the server's members.
func (s *Store) ListMembers(ctx context.Context, serverID int64) ([]models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			users.id,
			users.display_name,
			users.photo_url
		FROM
			server_members
		JOIN
			users ON server_members.user_id = users.id
		WHERE
			server_members.server_id = ?
		ORDER BY users.display_name
		`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.UserProfile{}
	for rows.Next() {
		var member models.UserProfile
		var photoURL sql.NullString
		if err := rows.Scan(&member.UID, &member.DisplayName, &photoURL); err != nil {
			return nil, err
		}
		member.PhotoURL = photoURL.String
		member.CreatedAt = snowflake.Time(member.UID)
		members = append(members, member)
	}

	return members, rows.Err()
}
