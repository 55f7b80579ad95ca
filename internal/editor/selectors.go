package editor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Query pairs a CSS selector with an optional substring the matched element's
// text must contain. The empty pattern matches any text.
type Query struct {
	Selector    string `yaml:"selector" json:"selector"`
	TextPattern string `yaml:"text_pattern,omitempty" json:"text_pattern,omitempty"`
}

// Catalog holds every selector and phrase list the pipeline matches against.
// The editor UI ships no stable schema, so everything here is an ordered list
// of candidates evaluated first-match-wins. Selector drift is fixed by
// overriding entries from a YAML file, not by redeploying.
type Catalog struct {
	// Frame acquisition
	FrameNames        []string `yaml:"frame_names"`
	FrameURLFragments []string `yaml:"frame_url_fragments"`

	// Content injection
	TitleSelectors   []string `yaml:"title_selectors"`
	BodySelectors    []string `yaml:"body_selectors"`
	OverlaySelectors []string `yaml:"overlay_selectors"`
	PopupCloseQuery  []Query  `yaml:"popup_close_queries"`

	// Media attachment
	PhotoButtonQueries      []Query  `yaml:"photo_button_queries"`
	FromDeviceQueries       []Query  `yaml:"from_device_queries"`
	FileInputSelectors      []string `yaml:"file_input_selectors"`
	ImageComponentSelectors []string `yaml:"image_component_selectors"`

	// Place attachment
	PlaceButtonQueries  []Query  `yaml:"place_button_queries"`
	PlaceSearchInputs   []string `yaml:"place_search_inputs"`
	PlaceResultQueries  []Query  `yaml:"place_result_queries"`
	PlaceConfirmQueries []Query  `yaml:"place_confirm_queries"`

	// Save + verification
	SaveButtonQueries []Query  `yaml:"save_button_queries"`
	ToastSelectors    []string `yaml:"toast_selectors"`
	SuccessPhrases    []string `yaml:"success_phrases"`
	FailurePhrases    []string `yaml:"failure_phrases"`
	DraftPanelQueries []Query  `yaml:"draft_panel_queries"`
	DraftItemSelector []string `yaml:"draft_item_selectors"`
	ChromeLabels      []string `yaml:"chrome_labels"`
	SavedSignalTexts  []string `yaml:"saved_signal_texts"`

	// Tags and visibility (best-effort, post-body)
	TagInputSelectors     []string `yaml:"tag_input_selectors"`
	VisibilityRadioFormat string   `yaml:"visibility_radio_format"`
}

// DefaultCatalog returns the built-in selector catalog for the target editor.
func DefaultCatalog() *Catalog {
	return &Catalog{
		FrameNames:        []string{"mainFrame", "editorFrame"},
		FrameURLFragments: []string{"PostWriteForm", "SmartEditor", "postwrite"},

		TitleSelectors: []string{
			".se-title-text .se-text-paragraph",
			".se-documentTitle .se-text-paragraph",
			"[data-a11y-title='title'] [contenteditable=true]",
			".se-title-text",
		},
		BodySelectors: []string{
			".se-main-container .se-text-paragraph",
			".se-component-content [contenteditable=true]",
			"[contenteditable=true]",
		},
		OverlaySelectors: []string{
			".se-dnd-dimmed", ".se-popup-dim", ".se-dim",
			"[class*='dimmed']", "[class*='layer_popup']",
		},
		PopupCloseQuery: []Query{
			{Selector: ".se-popup-close-button"},
			{Selector: ".se-help-panel-close-button"},
			{Selector: "button", TextPattern: "닫기"},
			{Selector: "button", TextPattern: "취소"},
			{Selector: "[class*='close']"},
		},

		PhotoButtonQueries: []Query{
			{Selector: "button", TextPattern: "사진"},
			{Selector: "[data-name='image']"},
			{Selector: "[data-log='dot.photo']"},
			{Selector: ".se-toolbar button"},
		},
		FromDeviceQueries: []Query{
			{Selector: "button", TextPattern: "내 컴퓨터"},
			{Selector: "[data-name='image-localImage']"},
			{Selector: "[class*='local_upload']"},
		},
		FileInputSelectors: []string{
			"input[type=file][accept*='image']",
			"input[type=file]",
		},
		ImageComponentSelectors: []string{
			".se-image-resource",
			".se-component.se-image",
			".se-main-container img",
		},

		PlaceButtonQueries: []Query{
			{Selector: "button", TextPattern: "장소"},
			{Selector: "[data-name='map']"},
			{Selector: "[data-log='dot.map']"},
		},
		PlaceSearchInputs: []string{
			".se-place-search-input input",
			"input[placeholder*='장소']",
			".se-popup input[type=text]",
		},
		PlaceResultQueries: []Query{
			{Selector: ".se-place-map-search-result-list li"},
			{Selector: "[class*='search_result'] li"},
			{Selector: ".se-popup li"},
		},
		PlaceConfirmQueries: []Query{
			{Selector: "button", TextPattern: "확인"},
			{Selector: "button", TextPattern: "추가"},
			{Selector: ".se-place-add-button"},
		},

		SaveButtonQueries: []Query{
			{Selector: "button", TextPattern: "저장"},
			{Selector: ".save_btn__bzc5B"},
			{Selector: "[data-click-area='tpb.save']"},
			{Selector: "[class*='save']"},
		},
		ToastSelectors: []string{
			".se-toast", "[class*='toast']", "[role='alert']", "[class*='notification']",
		},
		SuccessPhrases: []string{"저장", "완료", "saved", "임시저장"},
		FailurePhrases: []string{"실패", "오류", "error", "failed"},
		DraftPanelQueries: []Query{
			{Selector: "button", TextPattern: "저장"},
			{Selector: ".se-savedpost-button"},
			{Selector: "[class*='saved_post']"},
		},
		DraftItemSelector: []string{
			".se-sidebar-savedpost-list li",
			"[class*='savedpost'] li",
			".se-popup li",
		},
		ChromeLabels: []string{"삭제", "전체삭제", "닫기", "더보기", "불러오기"},
		SavedSignalTexts: []string{"저장", "saved"},

		TagInputSelectors: []string{
			"#tag-input", "input[placeholder*='태그']",
		},
		VisibilityRadioFormat: "input[type=radio][value=%s]",
	}
}

// LoadCatalog returns the default catalog with any entries present in the
// YAML file at path overriding the built-ins. An empty path means defaults.
func LoadCatalog(path string) (*Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selector file: %w", err)
	}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("parse selector file %s: %w", path, err)
	}
	return cat, nil
}
