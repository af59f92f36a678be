package backend

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	jellyfin "github.com/dweymouth/go-jellyfin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/zalando/go-keyring"

	"github.com/meridian-player/meridian/backend/mediaprovider"
)

var ErrNoServers = errors.New("no servers are configured")

// ServerManager owns the connection to the active Jellyfin server and the
// durable session seed that lets a login survive primary storage loss.
type ServerManager struct {
	ServerID uuid.UUID
	Username string
	Server   *jellyfin.Client

	config    *Config
	seedStore *SessionSeedStore

	appName    string
	appVersion string

	onServerConnected []func()
	onLogout          []func()
}

func NewServerManager(appName, appVersion string, config *Config, seedStore *SessionSeedStore) *ServerManager {
	return &ServerManager{
		appName:    appName,
		appVersion: appVersion,
		config:     config,
		seedStore:  seedStore,
	}
}

// ConnectToServer authenticates against conf's server, stores the password
// in the OS keyring, and writes a session seed so the login can be
// restored on next launch.
func (s *ServerManager) ConnectToServer(conf *ServerConfig, password string) error {
	cli, err := s.testConnectionAndAuth(conf.ServerConnection, password)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.appName, conf.ID.String(), password); err != nil {
		log.Printf("error saving password to keyring: %v", err)
	}
	s.Server = cli
	s.ServerID = conf.ID
	s.Username = conf.Username

	seed := &SessionSeed{
		UserID:       seedUserID(conf.ID, conf.Username),
		ServerID:     conf.ID.String(),
		Username:     conf.Username,
		ServerName:   conf.Nickname,
		AccessPolicy: AccessPolicyNone,
	}
	seed.AddServerURL(conf.Hostname)
	if conf.AltHostname != "" {
		seed.ServerURLs = append(seed.ServerURLs, conf.AltHostname)
	}
	if err := s.seedStore.Save(seed); err != nil {
		log.Printf("error saving session seed: %v", err)
	}

	for _, cb := range s.onServerConnected {
		cb()
	}
	return nil
}

// TryAutoConnect restores the most recently used session: it finds the
// most recent seed, matches it to a configured server, pulls the password
// from the keyring, and connects. A seed whose access policy requires
// sign-in is not auto-connected.
func (s *ServerManager) TryAutoConnect() error {
	seed, err := s.seedStore.MostRecent()
	if err != nil {
		var corrupt *StoreCorruptError
		if errors.As(err, &corrupt) {
			log.Printf("session seed unreadable, sign-in required: %v", corrupt)
			return corrupt
		}
		return err
	}
	if seed == nil {
		return ErrNoServers
	}
	if seed.AccessPolicy == AccessPolicyRequireSignIn {
		return fmt.Errorf("session for %s requires sign-in", seed.Username)
	}
	conf := s.serverConfigForSeed(seed)
	if conf == nil {
		return ErrNoServers
	}
	pass, err := s.GetServerPassword(conf.ID)
	if err != nil {
		return fmt.Errorf("credential hint unavailable: %w", err)
	}
	if err := s.ConnectToServer(conf, pass); err != nil {
		return err
	}
	if err := s.seedStore.Touch(seed.UserID); err != nil {
		log.Printf("error touching session seed: %v", err)
	}
	return nil
}

func (s *ServerManager) serverConfigForSeed(seed *SessionSeed) *ServerConfig {
	for _, conf := range s.config.Servers {
		if conf.ID.String() == seed.ServerID {
			return conf
		}
	}
	return nil
}

func (s *ServerManager) testConnectionAndAuth(connection ServerConnection, password string) (*jellyfin.Client, error) {
	cli, err := s.newClient(connection.Hostname)
	if err == nil {
		err = cli.Login(connection.Username, password)
	}
	if err != nil && connection.AltHostname != "" {
		log.Printf("error connecting to primary hostname: %v; trying alternate", err)
		cli, err = s.newClient(connection.AltHostname)
		if err == nil {
			err = cli.Login(connection.Username, password)
		}
	}
	if err != nil {
		return nil, err
	}
	return cli, nil
}

func (s *ServerManager) newClient(hostname string) (*jellyfin.Client, error) {
	timeout := 30 * time.Second
	if t := s.config.Application.RequestTimeoutSecs; t > 0 {
		timeout = time.Duration(t) * time.Second
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = timeout
	if s.config.Application.SkipSSLVerify {
		retryClient.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return jellyfin.NewClient(
		NormalizeJellyfinURL(hostname),
		s.appName,
		s.appVersion,
		jellyfin.WithHTTPClient(retryClient.StandardClient()),
	)
}

// AddServer registers a new server in the config and returns its entry.
// It does not connect.
func (s *ServerManager) AddServer(nickname string, connection ServerConnection) *ServerConfig {
	sc := &ServerConfig{
		ID:               uuid.New(),
		Nickname:         nickname,
		ServerConnection: connection,
		Default:          len(s.config.Servers) == 0,
	}
	s.config.Servers = append(s.config.Servers, sc)
	return sc
}

// Logout disconnects from the current server, removes the keyring entry,
// and deletes the session seed. Seed deletion is what makes the logout
// durable; a failure there is logged but does not block the logout.
func (s *ServerManager) Logout() {
	if s.Server == nil {
		return
	}
	if err := keyring.Delete(s.appName, s.ServerID.String()); err != nil {
		log.Printf("error removing keyring credential: %v", err)
	}
	if err := s.seedStore.Delete(seedUserID(s.ServerID, s.Username)); err != nil {
		log.Printf("error deleting session seed: %v", err)
	}
	for _, cb := range s.onLogout {
		cb()
	}
	s.Server = nil
	s.ServerID = uuid.UUID{}
	s.Username = ""
}

func (s *ServerManager) OnServerConnected(cb func()) {
	s.onServerConnected = append(s.onServerConnected, cb)
}

func (s *ServerManager) OnLogout(cb func()) {
	s.onLogout = append(s.onLogout, cb)
}

func (s *ServerManager) GetServerPassword(serverID uuid.UUID) (string, error) {
	return keyring.Get(s.appName, serverID.String())
}

func (s *ServerManager) SetServerPassword(serverID uuid.UUID, password string) error {
	return keyring.Set(s.appName, serverID.String(), password)
}

// GetItemStreamURL returns a direct stream URL for the item, pinned to the
// given media source when one is selected.
func (s *ServerManager) GetItemStreamURL(itemID, mediaSourceID string) (string, error) {
	if s.Server == nil {
		return "", ErrNoServers
	}
	var transcode *jellyfin.TranscodeOptions
	if !s.config.Transcoding.ForceDirectPlay && s.config.Transcoding.MaxBitrate > 0 {
		transcode = &jellyfin.TranscodeOptions{
			AudioCodec:   s.config.Transcoding.PreferredAudioCodec,
			AudioBitRate: uint32(s.config.Transcoding.MaxBitrate * 1000),
		}
	}
	streamURL, err := s.Server.GetStreamURL(itemID, transcode)
	if err != nil {
		return "", err
	}
	if mediaSourceID == "" {
		return streamURL, nil
	}
	u, err := url.Parse(streamURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("MediaSourceId", mediaSourceID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchItem retrieves the playable item with its media sources. The
// server reports the default source under the item's own id.
func (s *ServerManager) FetchItem(itemID string) (*mediaprovider.Item, error) {
	if s.Server == nil {
		return nil, ErrNoServers
	}
	song, err := s.Server.GetSong(itemID)
	if err != nil {
		return nil, err
	}
	item := &mediaprovider.Item{
		ID:           song.Id,
		Name:         song.Name,
		Type:         mediaprovider.ItemTypeAudio,
		RunTimeTicks: song.RunTimeTicks,
		ProductionYr: song.ProductionYear,
	}
	src := mediaprovider.MediaSource{
		ID:        song.Id,
		Name:      song.Name,
		IsDefault: true,
	}
	if len(song.MediaSources) > 0 {
		src.Bitrate = song.MediaSources[0].Bitrate
	}
	item.Sources = []mediaprovider.MediaSource{src}
	return item, nil
}

func (s *ServerManager) ReportPlaybackStart(itemID string) error {
	if s.Server == nil {
		return ErrNoServers
	}
	return s.Server.UpdatePlayStatus(itemID, jellyfin.Start, 0)
}

func (s *ServerManager) ReportPlaybackStopped(itemID string, positionTicks int64) error {
	if s.Server == nil {
		return ErrNoServers
	}
	return s.Server.UpdatePlayStatus(itemID, jellyfin.Stop, positionTicks)
}

func seedUserID(serverID uuid.UUID, username string) string {
	return username + "@" + serverID.String()
}

var _ MediaServer = (*ServerManager)(nil)
