package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/calbook/calbook/services/booking-service/internal/availability"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const primaryCalendar = "primary"

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides the OAuth endpoints; zero means Google's.
	Endpoint oauth2.Endpoint
	Timeout  time.Duration
	// Options are appended to every calendar service, e.g. option.WithEndpoint.
	Options []option.ClientOption
}

// Google implements Provider on the Calendar v3 API. Each call builds a
// client from the owner's refresh token; access tokens are not cached.
type Google struct {
	oauth *oauth2.Config
	http  *http.Client
	opts  []option.ClientOption
}

func NewGoogle(cfg GoogleConfig) *Google {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{gcal.CalendarEventsScope, gcal.CalendarReadonlyScope},
		},
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		opts: cfg.Options,
	}
}

func (g *Google) service(ctx context.Context, cred Credential) (*gcal.Service, error) {
	if cred.RefreshToken == "" {
		return nil, ErrInvalidGrant
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)
	client := oauth2.NewClient(ctx, g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}))
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, g.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return svc, nil
}

func (g *Google) QueryBusy(ctx context.Context, cred Credential, timeMin, timeMax time.Time) ([]availability.Interval, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return nil, err
	}
	resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: timeMin.UTC().Format(time.RFC3339),
		TimeMax: timeMax.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: primaryCalendar}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify("query free/busy", err)
	}

	cal, ok := resp.Calendars[primaryCalendar]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("query free/busy: %s", cal.Errors[0].Reason)
	}

	busy := make([]availability.Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end %q: %w", p.End, err)
		}
		busy = append(busy, availability.Interval{Start: start, End: end})
	}
	return busy, nil
}

// CreateEvent inserts the event on the owner's primary calendar, emails every
// attendee and asks for a Meet conference.
func (g *Google) CreateEvent(ctx context.Context, cred Credential, ev Event) (CreatedEvent, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return CreatedEvent{}, err
	}

	attendees := make([]*gcal.EventAttendee, 0, len(ev.Attendees))
	for _, email := range ev.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: email})
	}
	body := &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Attendees:   attendees,
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}

	created, err := svc.Events.Insert(primaryCalendar, body).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return CreatedEvent{}, classify("create event", err)
	}
	return CreatedEvent{ID: created.Id, MeetingLink: meetingLink(created)}, nil
}

// DeleteEvent removes an event; an event that is already gone is not an error.
func (g *Google) DeleteEvent(ctx context.Context, cred Credential, eventID string) error {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return err
	}
	err = svc.Events.Delete(primaryCalendar, eventID).SendUpdates("all").Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return classify("delete event", err)
	}
	return nil
}

func meetingLink(ev *gcal.Event) string {
	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep != nil && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return ev.HangoutLink
}

func classify(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.ErrorCode == "invalid_grant" {
		return fmt.Errorf("%s: %w", op, ErrInvalidGrant)
	}
	return fmt.Errorf("%s: %w", op, err)
}
