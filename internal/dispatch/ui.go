package dispatch

import (
	"context"
	"sync"

	"showroom-popup-builder/internal/model"
)

// UploadRequest is handed to the upload modal.
type UploadRequest struct {
	Object string           `json:"object"`
	Zone   string           `json:"zone,omitempty"`
	PLV    *model.PLVConfig `json:"plv,omitempty"`
}

// UI is what the dispatcher drives in the viewer.
type UI interface {
	ShowPopup(objectID string)
	ShowAdminButtons(objectID string, buttons []string)
	ShowNotConfigured(objectID string, access model.Access)
	OpenEditor(target model.ObjectTarget)
	OpenUpload(req UploadRequest)
	OpenURL(url string)
}

// TextureReloader reloads the PLV textures bound to an object.
type TextureReloader interface {
	ReloadTextures(ctx context.Context, objectID string, plv *model.PLVConfig) error
}

// Command types emitted by Recorder.
const (
	CmdShowPopup      = "show_popup"
	CmdAdminButtons   = "admin_buttons"
	CmdNotConfigured  = "not_configured"
	CmdOpenEditor     = "open_editor"
	CmdOpenUpload     = "open_upload"
	CmdOpenURL        = "open_url"
	CmdReloadTextures = "reload_textures"
)

// Command is one instruction for the browser.
type Command struct {
	Type    string              `json:"type"`
	Object  string              `json:"object,omitempty"`
	URL     string              `json:"url,omitempty"`
	Script  string              `json:"script,omitempty"`
	Buttons []string            `json:"buttons,omitempty"`
	Access  *model.Access       `json:"access,omitempty"`
	Target  *model.ObjectTarget `json:"target,omitempty"`
	Upload  *UploadRequest      `json:"upload,omitempty"`
	PLV     *model.PLVConfig    `json:"plv,omitempty"`
}

// Recorder collects the UI calls of one dispatch as commands that the scene
// server returns to the browser. It also records texture reloads.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
	// ScriptURL, when set, attaches the popup script location to show commands.
	ScriptURL func(objectID string) string
}

func (r *Recorder) add(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, c)
}

// Commands returns the recorded commands in call order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

func (r *Recorder) ShowPopup(objectID string) {
	c := Command{Type: CmdShowPopup, Object: objectID}
	if r.ScriptURL != nil {
		c.Script = r.ScriptURL(objectID)
	}
	r.add(c)
}

func (r *Recorder) ShowAdminButtons(objectID string, buttons []string) {
	r.add(Command{Type: CmdAdminButtons, Object: objectID, Buttons: buttons})
}

func (r *Recorder) ShowNotConfigured(objectID string, access model.Access) {
	r.add(Command{Type: CmdNotConfigured, Object: objectID, Access: &access})
}

func (r *Recorder) OpenEditor(target model.ObjectTarget) {
	r.add(Command{Type: CmdOpenEditor, Object: target.ID, Target: &target})
}

func (r *Recorder) OpenUpload(req UploadRequest) {
	r.add(Command{Type: CmdOpenUpload, Object: req.Object, Upload: &req})
}

func (r *Recorder) OpenURL(url string) {
	r.add(Command{Type: CmdOpenURL, URL: url})
}

func (r *Recorder) ReloadTextures(_ context.Context, objectID string, plv *model.PLVConfig) error {
	r.add(Command{Type: CmdReloadTextures, Object: objectID, PLV: plv})
	return nil
}
