package services

import (
	"chat-sync/errors"
	"chat-sync/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTokenService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should publish the device token of the user", func(t *testing.T) {
		req := require.New(t)
		registry := mocks.NewMockTokenRegistry(ctrl)
		source := mocks.NewMockDeviceTokenSource(ctrl)
		svc := NewTokenService(slog.Default(), registry, source)

		source.EXPECT().DeviceToken(gomock.Any()).Return("tok-u1", nil)
		registry.EXPECT().SetToken(gomock.Any(), "u1", "tok-u1").Return(nil).Times(1)

		req.NoError(svc.Register(context.Background(), "u1"))
		req.Equal("tok-u1", svc.OwnToken())
	})

	t.Run("should not register an empty device token", func(t *testing.T) {
		req := require.New(t)
		registry := mocks.NewMockTokenRegistry(ctrl)
		source := mocks.NewMockDeviceTokenSource(ctrl)
		svc := NewTokenService(slog.Default(), registry, source)

		source.EXPECT().DeviceToken(gomock.Any()).Return("", nil)
		registry.EXPECT().SetToken(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		err := svc.Register(context.Background(), "u1")
		req.ErrorIs(err, errors.ErrTokenNotFound)
		req.Empty(svc.OwnToken())
	})

	t.Run("should keep no own token when the registry refuses it", func(t *testing.T) {
		req := require.New(t)
		registry := mocks.NewMockTokenRegistry(ctrl)
		source := mocks.NewMockDeviceTokenSource(ctrl)
		svc := NewTokenService(slog.Default(), registry, source)

		source.EXPECT().DeviceToken(gomock.Any()).Return("tok-u1", nil)
		registry.EXPECT().SetToken(gomock.Any(), "u1", "tok-u1").Return(fmt.Errorf("boom"))

		req.Error(svc.Register(context.Background(), "u1"))
		req.Empty(svc.OwnToken())
	})
}

func TestTokenService_PeerToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should ask the registry once per found peer", func(t *testing.T) {
		req := require.New(t)
		registry := mocks.NewMockTokenRegistry(ctrl)
		svc := NewTokenService(slog.Default(), registry, nil)

		registry.EXPECT().GetToken(gomock.Any(), "u2").Return("tok-u2", nil).Times(1)

		for n := 0; n < 3; n++ {
			token, err := svc.PeerToken(context.Background(), "u2")
			req.NoError(err)
			req.Equal("tok-u2", token)
		}
	})

	t.Run("should not cache a missing token", func(t *testing.T) {
		req := require.New(t)
		registry := mocks.NewMockTokenRegistry(ctrl)
		svc := NewTokenService(slog.Default(), registry, nil)

		// Given the peer has no token at first, then registers one
		gomock.InOrder(
			registry.EXPECT().GetToken(gomock.Any(), "u2").Return("", errors.ErrTokenNotFound),
			registry.EXPECT().GetToken(gomock.Any(), "u2").Return("tok-u2", nil),
		)

		_, err := svc.PeerToken(context.Background(), "u2")
		req.ErrorIs(err, errors.ErrTokenNotFound)

		token, err := svc.PeerToken(context.Background(), "u2")
		req.NoError(err)
		req.Equal("tok-u2", token)
	})

	t.Run("should treat an empty token as not found", func(t *testing.T) {
		req := require.New(t)
		registry := mocks.NewMockTokenRegistry(ctrl)
		svc := NewTokenService(slog.Default(), registry, nil)

		registry.EXPECT().GetToken(gomock.Any(), "u2").Return("", nil)

		_, err := svc.PeerToken(context.Background(), "u2")
		req.ErrorIs(err, errors.ErrTokenNotFound)
	})

	t.Run("should serve a remembered token without the registry", func(t *testing.T) {
		req := require.New(t)
		registry := mocks.NewMockTokenRegistry(ctrl)
		svc := NewTokenService(slog.Default(), registry, nil)

		registry.EXPECT().GetToken(gomock.Any(), gomock.Any()).Times(0)
		svc.Remember("u2", "tok-from-push")

		token, err := svc.PeerToken(context.Background(), "u2")
		req.NoError(err)
		req.Equal("tok-from-push", token)
	})
}
