// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package language is the registry of written languages a story can be published in.

Besides the public listing endpoints it answers the two questions the
translation engine asks: which language is each story written in, and may two
stories be translations of each other.
*/
package language

// Language represents a spoken/written language supported by the system.
type Language struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

// Label is the display name shown next to a translation link.
// The native name is appended when it differs, e.g. "French (Français)".
func (language *Language) Label() string {
	if language.NativeName == "" || language.NativeName == language.Name {
		return language.Name
	}
	return language.Name + " (" + language.NativeName + ")"
}
