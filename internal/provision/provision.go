// Package provision implements the access-point provisioning mode of
// spec.md §4.9: stand up an open Wi-Fi access point, render its SSID
// and IP on the OLED, and serve a tiny HTTP form for Wi-Fi credentials
// plus a raw config-script endpoint for the rest of the preference
// schema. It is grounded directly on the original firmware's
// web_config.cpp (webcfg_start_access_point, the four-route
// webcfg_process_request dispatch, and its eight-field config_page
// template), translated from its hand-rolled Stream/HTTP parsing to
// net/http and html/template.
package provision

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"

	"snappysense.dev/firmware/internal/display"
	"snappysense.dev/firmware/internal/nvs"
	"snappysense.dev/firmware/internal/prefs"
	"snappysense.dev/firmware/internal/wifi"
)

// maxConfigBody bounds a posted config script or form body, matching
// §5's general "no unbounded buffers" posture even though the
// original's get_post_data trusted Content-Length outright.
const maxConfigBody = 64 * 1024

// Addr is the port the soft access point serves on (§6, "Port 80 on
// the soft access point").
const Addr = ":80"

// Server serves the provisioning HTTP routes of §4.9 over the device's
// own access point.
type Server struct {
	prefs  *prefs.Store
	nvs    *nvs.Store
	disp   display.Facade
	radio  wifi.APRadio
	random *rand.Rand
}

// New returns a Server backed by store (read and written directly; the
// POST handlers persist it to nv via SaveToNonvolatile), disp for the
// SSID/IP and status banners, and radio for bringing up the access
// point itself.
func New(store *prefs.Store, nv *nvs.Store, disp display.Facade, radio wifi.APRadio) *Server {
	return &Server{prefs: store, nvs: nv, disp: disp, radio: radio}
}

// Start brings up the access point and renders its SSID and IP on the
// OLED, mirroring webcfg_start_access_point. The SSID is the
// configured "web-config-access-point" value, or else a randomly
// generated "snp_XXXX_XXXX_cfg" fallback. It returns an error rather
// than hanging forever the way the original firmware does on AP
// failure -- the caller decides how to treat that as fatal.
func (s *Server) Start() (ssid, ip string, err error) {
	var name string
	if p, ok := s.prefs.Get("web-config-access-point"); ok {
		name = p.StrValue
	}
	if name == "" {
		name = s.randomSSID()
	}
	addr, err := s.radio.CreateAccessPoint(name, "")
	if err != nil {
		return name, "", fmt.Errorf("provision: create access point: %w", err)
	}
	s.renderStatus(name + "\n\n" + addr)
	return name, addr, nil
}

func (s *Server) randomSSID() string {
	hi := s.rand().Intn(65536)
	lo := s.rand().Intn(65536)
	return fmt.Sprintf("snp_%04x_%04x_cfg", hi, lo)
}

func (s *Server) rand() *rand.Rand {
	if s.random == nil {
		s.random = rand.New(rand.NewSource(1))
	}
	return s.random
}

func (s *Server) renderStatus(msg string) {
	s.disp.Clear()
	s.disp.DrawText(0, 12, msg)
	s.disp.Flush()
}

// Handler returns the routed http.Handler for the four routes of §4.9.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/show", s.handleShow)
	mux.HandleFunc("/config", s.handleConfig)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetForm(w, "")
	case http.MethodPost:
		s.handlePostForm(w, r)
	default:
		http.Error(w, "405 method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "405 method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf bytes.Buffer
	if err := s.prefs.Show(&buf); err != nil {
		log.Printf("provision: show: %v", err)
	}
	fmt.Fprint(w, "<html><body><pre>\n")
	template.HTMLEscape(w, buf.Bytes())
	fmt.Fprint(w, "</pre></body></html>\n")
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "405 method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody+1))
	if err != nil {
		http.Error(w, "405 bad request", http.StatusMethodNotAllowed)
		return
	}
	if len(body) > maxConfigBody {
		http.Error(w, "405 bad request - body too large", http.StatusMethodNotAllowed)
		return
	}
	res, err := s.prefs.Evaluate(string(body))
	if err != nil {
		ee, _ := err.(*prefs.EvalError)
		log.Printf("provision: invalid config: %v", err)
		w.WriteHeader(http.StatusMethodNotAllowed)
		if ee != nil {
			fmt.Fprintf(w, "Invalid config: %s\n", ee.Error())
			s.renderStatus(fmt.Sprintf("Bad config\nLine %d\n%s", ee.LineNumber, ee.ShortMessage))
		} else {
			fmt.Fprintf(w, "Invalid config: %s\n", err)
		}
		return
	}
	if res.Saved {
		if err := s.prefs.SaveToNonvolatile(s.nvs); err != nil {
			log.Printf("provision: save: %v", err)
		}
		s.renderStatus("Config accepted\n\nConfig saved")
	} else {
		s.renderStatus("Config accepted\n\n*** NOT SAVED ***")
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Config accepted")
}

// formFields is the eight-field template data, matching config_page's
// message/ssid1/password1/ssid2/password2/ssid3/password3 shape (the
// eighth field, "location", is never populated by this firmware
// either -- see the original's own comment).
type formFields struct {
	Message string
	SSIDs   [3]string
	Passwds [3]string
}

func (s *Server) formData(message string) formFields {
	var f formFields
	f.Message = message
	for i := 0; i < 3; i++ {
		p, _ := s.prefs.Get(fmt.Sprintf("ssid%d", i+1))
		f.SSIDs[i] = p.StrValue
		p, _ = s.prefs.Get(fmt.Sprintf("password%d", i+1))
		f.Passwds[i] = p.StrValue
	}
	return f
}

func (s *Server) handleGetForm(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formTemplate.Execute(w, s.formData(message)); err != nil {
		log.Printf("provision: render form: %v", err)
	}
}

func (s *Server) handlePostForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "405 bad request", http.StatusMethodNotAllowed)
		return
	}
	updated := false
	for key, vals := range r.Form {
		if len(vals) == 0 {
			continue
		}
		value := vals[0]
		longKey, ok := formFieldToPrefName(key)
		if !ok {
			log.Printf("provision: unexpected field %q", key)
			http.Error(w, "405 bad request - unexpected field", http.StatusMethodNotAllowed)
			return
		}
		if err := s.prefs.SetString(longKey, value); err != nil {
			log.Printf("provision: %v", err)
			http.Error(w, "405 bad request - unexpected field", http.StatusMethodNotAllowed)
			return
		}
		updated = true
	}
	if updated {
		if err := s.prefs.SaveToNonvolatile(s.nvs); err != nil {
			log.Printf("provision: save: %v", err)
		}
	}
	w.WriteHeader(http.StatusAccepted)
	s.handleGetForm(w, "VALUES UPDATED!")
}

// formFieldToPrefName maps a posted ssidN/passwordN field to its pref
// long key, mirroring handle_post_user_config's sscanf matching --
// only exactly "ssid1".."ssid3" and "password1".."password3" are
// accepted, anything else is an unexpected field.
func formFieldToPrefName(field string) (string, bool) {
	for i := 1; i <= 3; i++ {
		n := strconv.Itoa(i)
		if field == "ssid"+n {
			return "ssid" + n, true
		}
		if field == "password"+n {
			return "password" + n, true
		}
	}
	return "", false
}

var formTemplate = template.Must(template.New("config").Parse(`<html>
  <head>
    <style>
      table { width: 100%; font-size: 2em }
      input { font-size: 0.7em }
      button { font-size: 2em }
      .status { font-size: 2em }
    </style>
    <title>SnappySense configuration</title>
  </head>
  <body>
    <h1>SnappySense configuration</h1>
    <div class="status">{{.Message}}&nbsp;</div>
    <div>&nbsp;</div>
    <div>
      <form method="POST" action="/">
        <table>
          <tr> <td>SSID1</td> <td><input name=ssid1 type="text" value="{{index .SSIDs 0}}">&nbsp;</td>
            <td>Password</td> <td><input name=password1 type="text" value="{{index .Passwds 0}}"/></td></tr>
          <tr> <td>SSID2</td> <td><input name=ssid2 type="text" value="{{index .SSIDs 1}}"/></td>
            <td>Password</td> <td><input name=password2 type="text" value="{{index .Passwds 1}}"/></td></tr>
          <tr> <td>SSID3</td> <td><input name=ssid3 type="text" value="{{index .SSIDs 2}}"/></td>
            <td>Password</td> <td><input name=password3 type="text" value="{{index .Passwds 2}}"/></td></tr>
        </table>
        <button>Submit</button>
      </form>
    </div>
  </body>
</html>
`))
