package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"chatsync/models"
)

const (
	profileFieldDisplayName = "display_name"
	profileFieldEmail       = "email"
	profileFieldPhotoURL    = "photo_url"
	profileFieldPushToken   = "push_token"
	profileFieldLastSeen    = "last_seen"
)

// SaveProfile upserts the directory record for a user. Called on every
// sign-in so the stored display name and push token stay current.
func (c *Client) SaveProfile(ctx context.Context, profile models.Profile) error {
	if profile.UserID == "" {
		return errors.New("user_id is required")
	}

	fields := map[string]any{
		profileFieldDisplayName: profile.DisplayName,
		profileFieldEmail:       profile.Email,
		profileFieldPhotoURL:    profile.PhotoURL,
		profileFieldPushToken:   profile.PushToken,
		profileFieldLastSeen:    profile.LastSeen,
	}
	if err := c.rdb.HSet(ctx, profileKey(profile.UserID), fields).Err(); err != nil {
		return fmt.Errorf("save profile %q: %w", profile.UserID, err)
	}
	return nil
}

// Profile loads the directory record for a user.
func (c *Client) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	raw, err := c.rdb.HGetAll(ctx, profileKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", userID, err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	profile := &models.Profile{
		UserID:      userID,
		DisplayName: raw[profileFieldDisplayName],
		Email:       raw[profileFieldEmail],
		PhotoURL:    raw[profileFieldPhotoURL],
		PushToken:   raw[profileFieldPushToken],
	}
	if v := raw[profileFieldLastSeen]; v != "" {
		lastSeen, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse last_seen for profile %q: %w", userID, err)
		}
		profile.LastSeen = lastSeen
	}

	return profile, nil
}

// LookupToken fetches the push delivery token for a user, fresh per call.
// A missing profile or empty token yields "" without an error; the caller
// treats that as "no registered delivery target".
func (c *Client) LookupToken(ctx context.Context, userID string) (string, error) {
	token, err := c.rdb.HGet(ctx, profileKey(userID), profileFieldPushToken).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("look up push token for %q: %w", userID, err)
	}
	return token, nil
}

// ClearToken removes a user's push delivery target, e.g. on sign-out.
func (c *Client) ClearToken(ctx context.Context, userID string) error {
	if err := c.rdb.HSet(ctx, profileKey(userID), profileFieldPushToken, "").Err(); err != nil {
		return fmt.Errorf("clear push token for %q: %w", userID, err)
	}
	return nil
}

// TouchLastSeen records the most recent time the user's client was active.
func (c *Client) TouchLastSeen(ctx context.Context, userID string, at int64) error {
	if err := c.rdb.HSet(ctx, profileKey(userID), profileFieldLastSeen, at).Err(); err != nil {
		return fmt.Errorf("touch last_seen for %q: %w", userID, err)
	}
	return nil
}
