package whatsapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	_ "modernc.org/sqlite"
)

// Client wraps the whatsmeow connection lifecycle: session restore, QR
// pairing, and status monitoring.
type Client struct {
	wa          *whatsmeow.Client
	qrCode      string
	ready       bool
	mu          sync.RWMutex
	qrChan      <-chan whatsmeow.QRChannelItem
	stopChan    chan bool
	container   *sqlstore.Container
	sessionPath string
	handler     whatsmeow.EventHandler
}

// NewClient creates a client storing its session at sessionPath.
func NewClient(sessionPath string) *Client {
	return &Client{
		sessionPath: sessionPath,
		stopChan:    make(chan bool),
	}
}

// SetEventHandler registers the handler invoked for every incoming event.
// Must be called before Connect.
func (c *Client) SetEventHandler(handler whatsmeow.EventHandler) {
	c.handler = handler
}

// WA exposes the underlying whatsmeow client.
func (c *Client) WA() *whatsmeow.Client {
	return c.wa
}

// Connect restores a stored session or starts the QR pairing flow.
func (c *Client) Connect() error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL", c.sessionPath)
	container, err := sqlstore.New(context.Background(), "sqlite", dsn, nil)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	c.container = container

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)
	if c.handler != nil {
		client.AddEventHandler(c.handler)
	}

	if deviceStore.ID != nil {
		log.Println("Found existing WhatsApp session, restoring...")
		if err := client.Connect(); err != nil {
			log.Printf("Failed to restore session: %v", err)
			if clearErr := c.clearSession(); clearErr != nil {
				log.Printf("Error clearing invalid session: %v", clearErr)
			}
			// Fall through to QR pairing
		} else {
			c.wa = client
			c.setReady(true)
			go c.monitorStatus()
			log.Println("WhatsApp session restored")
			return nil
		}
	}

	log.Println("No valid WhatsApp session, starting QR pairing...")
	qrChan, _ := client.GetQRChannel(context.Background())
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	c.wa = client
	c.qrChan = qrChan
	c.setReady(false)

	go c.monitorQR()
	go c.monitorStatus()
	return nil
}

func (c *Client) monitorQR() {
	for {
		select {
		case evt := <-c.qrChan:
			switch evt.Event {
			case "code":
				qrBytes, err := qrcode.Encode(evt.Code, qrcode.Medium, 256)
				if err != nil {
					log.Printf("Error rendering QR code: %v", err)
					continue
				}
				c.mu.Lock()
				c.qrCode = "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrBytes)
				c.mu.Unlock()
				log.Println("New pairing QR code generated")
			case "timeout":
				c.mu.Lock()
				c.qrCode = ""
				c.mu.Unlock()
				log.Println("Pairing QR code timed out")
			}
		case <-c.stopChan:
			return
		}
	}
}

func (c *Client) monitorStatus() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.wa == nil {
				continue
			}
			c.mu.Lock()
			wasReady := c.ready
			c.ready = c.wa.Store.ID != nil && c.wa.IsConnected()
			if c.ready && !wasReady {
				log.Println("WhatsApp login detected")
				c.qrCode = ""
			}
			c.mu.Unlock()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Client) clearSession() error {
	if c.container == nil {
		return fmt.Errorf("session store not initialized")
	}
	ctx := context.Background()
	devices, err := c.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("get devices: %w", err)
	}
	for _, device := range devices {
		if err := c.container.DeleteDevice(ctx, device); err != nil {
			log.Printf("Error deleting device %s: %v", device.ID, err)
		}
	}
	return nil
}

// QRCode returns the current pairing QR as a data URL, empty when none is
// pending.
func (c *Client) QRCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.qrCode
}

// IsReady reports whether the client is logged in and connected.
func (c *Client) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// Logout disconnects and wipes the stored session so a new device can pair.
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	close(c.stopChan)
	c.stopChan = make(chan bool)

	if c.wa != nil {
		c.wa.Disconnect()
	}
	if err := c.clearSession(); err != nil {
		log.Printf("Error clearing session on logout: %v", err)
	}

	c.wa = nil
	c.qrCode = ""
	c.ready = false
	log.Println("WhatsApp session cleared")
}
