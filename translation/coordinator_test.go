package translation

import (
	"context"
	stderrors "errors"
	"log/slog"
	"salon-sync/domain"
	"salon-sync/errors"
	"salon-sync/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type translationFixture struct {
	translator  *mocks.MockTranslator
	locales     *mocks.MockLocaleResolver
	coordinator *Coordinator
}

func newTranslationFixture(t *testing.T) *translationFixture {
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).AnyTimes()
	f := &translationFixture{
		translator: mocks.NewMockTranslator(ctrl),
		locales:    mocks.NewMockLocaleResolver(ctrl),
	}
	f.coordinator = NewCoordinator(logs.GetLoggerFromLevel(slog.LevelDebug), f.translator, f.locales, emitter)
	return f
}

var salonMessage = domain.Message{ID: 10, RoomID: 7, SenderType: domain.SenderSalon, Text: "안녕하세요"}

func TestCoordinator_Request_TwiceHidesWithoutNetwork(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newTranslationFixture(t)

	// Given the backend translates exactly once
	f.locales.EXPECT().Locales(gomock.Any(), domain.RoomID(7)).Return(domain.Locales{User: "en", Salon: "ko"}, nil).Times(1)
	f.translator.EXPECT().Translate(gomock.Any(), "안녕하세요", "ko", "en").Return("Hello", nil).Times(1)

	// When the translation is requested
	state, err := f.coordinator.Request(ctx, salonMessage)
	req.NoError(err)
	req.Equal(domain.TranslationShown, state.Status)
	req.Equal("Hello", state.Text)

	// Then a second request hides it again
	state, err = f.coordinator.Request(ctx, salonMessage)
	req.NoError(err)
	req.Equal(domain.TranslationAbsent, state.Status)
	req.Equal(domain.TranslationAbsent, f.coordinator.State("10").Status)
}

func TestCoordinator_Request_WhileLoading_IsNoOp(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newTranslationFixture(t)
	release := make(chan struct{})
	started := make(chan struct{})

	f.locales.EXPECT().Locales(gomock.Any(), gomock.Any()).Return(domain.Locales{User: "en", Salon: "ko"}, nil).Times(1)
	f.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, string) (string, error) {
			close(started)
			<-release
			return "Hello", nil
		}).Times(1)

	done := make(chan domain.TranslationState)
	go func() {
		state, _ := f.coordinator.Request(ctx, salonMessage)
		done <- state
	}()
	<-started

	// When a second request arrives during the call
	state, err := f.coordinator.Request(ctx, salonMessage)

	// Then it just reports the loading state
	req.NoError(err)
	req.Equal(domain.TranslationLoading, state.Status)

	close(release)
	select {
	case state = <-done:
		req.Equal(domain.TranslationShown, state.Status)
	case <-time.After(time.Second):
		req.Fail("translation never completed")
	}
}

func TestCoordinator_Request_ErrorThenRetry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newTranslationFixture(t)
	failure := stderrors.New("service unavailable")

	f.locales.EXPECT().Locales(gomock.Any(), gomock.Any()).Return(domain.Locales{User: "en", Salon: "ko"}, nil).Times(2)
	gomock.InOrder(
		f.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", failure),
		f.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("Hello", nil),
	)

	state, err := f.coordinator.Request(ctx, salonMessage)
	req.ErrorIs(err, failure)
	req.Equal(domain.TranslationError, state.Status)
	req.NotEmpty(state.Reason)

	// A request in the error state retries
	state, err = f.coordinator.Request(ctx, salonMessage)
	req.NoError(err)
	req.Equal(domain.TranslationShown, state.Status)
}

func TestCoordinator_Request_PhotoOnlyMessage(t *testing.T) {
	f := newTranslationFixture(t)
	photo := domain.Message{ID: 11, RoomID: 7, SenderType: domain.SenderUser, Photos: []domain.Photo{{PhotoID: 1}}}

	state, err := f.coordinator.Request(context.Background(), photo)

	require.ErrorIs(t, err, errors.ErrNothingToTranslate)
	require.Equal(t, domain.TranslationAbsent, state.Status)
}

func TestCoordinator_Request_DetectsUnknownSourceLanguage(t *testing.T) {
	req := require.New(t)
	f := newTranslationFixture(t)
	text := "Hello, I would like to move my appointment to next Tuesday afternoon if that still works for you. " +
		"Please let me know whether the stylist is available and how long the treatment will take."
	msg := domain.Message{ID: 12, RoomID: 7, SenderType: domain.SenderUser, Text: text}

	// Given the customer language is not known to the backend
	f.locales.EXPECT().Locales(gomock.Any(), gomock.Any()).Return(domain.Locales{Salon: "ko"}, nil)
	f.translator.EXPECT().Translate(gomock.Any(), text, "en", "ko").Return("번역", nil)

	state, err := f.coordinator.Request(context.Background(), msg)

	req.NoError(err)
	req.Equal("번역", state.Text)
}

func TestCoordinator_Request_NoTargetLanguage(t *testing.T) {
	f := newTranslationFixture(t)
	f.locales.EXPECT().Locales(gomock.Any(), gomock.Any()).Return(domain.Locales{Salon: "ko"}, nil)

	state, err := f.coordinator.Request(context.Background(), salonMessage)

	require.ErrorIs(t, err, errors.ErrBackend)
	require.Equal(t, domain.TranslationError, state.Status)
}

func TestCoordinator_Rekey(t *testing.T) {
	req := require.New(t)
	f := newTranslationFixture(t)
	provisional := domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderSalon, Text: "안녕하세요"}
	f.locales.EXPECT().Locales(gomock.Any(), gomock.Any()).Return(domain.Locales{User: "en", Salon: "ko"}, nil)
	f.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("Hello", nil)

	_, err := f.coordinator.Request(context.Background(), provisional)
	req.NoError(err)

	f.coordinator.Rekey("c-1", "42")

	req.Equal(domain.TranslationAbsent, f.coordinator.State("c-1").Status)
	req.Equal("Hello", f.coordinator.State("42").Text)
}

func TestCoordinator_Clear(t *testing.T) {
	req := require.New(t)
	f := newTranslationFixture(t)
	f.locales.EXPECT().Locales(gomock.Any(), gomock.Any()).Return(domain.Locales{User: "en", Salon: "ko"}, nil)
	f.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("Hello", nil)
	_, err := f.coordinator.Request(context.Background(), salonMessage)
	req.NoError(err)

	f.coordinator.Clear(context.Background(), "10")

	req.Equal(domain.TranslationAbsent, f.coordinator.State("10").Status)
}

func TestCoordinator_Rekey_WhileLoading(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newTranslationFixture(t)
	provisional := domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderSalon, Text: "안녕하세요"}
	release := make(chan struct{})
	started := make(chan struct{})

	f.locales.EXPECT().Locales(gomock.Any(), gomock.Any()).Return(domain.Locales{User: "en", Salon: "ko"}, nil)
	f.translator.EXPECT().Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, string) (string, error) {
			close(started)
			<-release
			return "Hello", nil
		})

	// Given a translation in flight for a provisional message
	done := make(chan error)
	go func() {
		_, err := f.coordinator.Request(ctx, provisional)
		done <- err
	}()
	<-started

	// When the server echo assigns its id before the translator answers
	f.coordinator.Rekey("c-1", "42")
	req.Equal(domain.TranslationLoading, f.coordinator.State("42").Status)
	close(release)
	req.NoError(<-done)

	// Then the result lands on the server id
	req.Equal(domain.TranslationShown, f.coordinator.State("42").Status)
	req.Equal("Hello", f.coordinator.State("42").Text)
	req.Equal(domain.TranslationAbsent, f.coordinator.State("c-1").Status)

	// And the next request on the confirmed message hides it again
	confirmed := provisional
	confirmed.ID = 42
	state, err := f.coordinator.Request(ctx, confirmed)
	req.NoError(err)
	req.Equal(domain.TranslationAbsent, state.Status)
}
