package whatsapp

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// HandleQR returns the current pairing QR code as a data URL.
func (c *Client) HandleQR(w http.ResponseWriter, r *http.Request) {
	qrCode := c.QRCode()

	w.Header().Set("Content-Type", "application/json")
	if qrCode == "" {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"qr":      "",
			"message": "No pairing QR pending. Either already logged in or still generating.",
			"ready":   c.IsReady(),
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"qr": qrCode})
}

// HandleStatus reports connection state.
func (c *Client) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"ready":            c.IsReady(),
		"client_available": c.WA() != nil,
		"timestamp":        time.Now().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleLogout wipes the session so a new device can pair.
func (c *Client) HandleLogout(w http.ResponseWriter, r *http.Request) {
	log.Println("Logout request received, clearing WhatsApp session")
	c.Logout()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Logged out successfully",
		"ready":   false,
	})
}
