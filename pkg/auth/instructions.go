package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide writes step-by-step instructions for copying
// the bilibili session cookies out of a browser
func ShowCookieExtractionGuide(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "BILIBILI COOKIE EXTRACTION GUIDE")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Public articles download without a login. Favorites need your session")
	fmt.Fprintln(w, "cookie, and a logged-in session is less likely to hit risk control.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "STEP 1: Log in at https://www.bilibili.com in your browser")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   Chrome, Edge, Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   Safari: enable the Develop menu in Settings, then Cmd+Option+I")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Find the cookies")
	fmt.Fprintln(w, "   Network tab: reload, click any request to api.bilibili.com and copy")
	fmt.Fprintln(w, "   the whole 'Cookie:' request header. 'opusdl auth login --cookie'")
	fmt.Fprintln(w, "   accepts it as is.")
	fmt.Fprintln(w, "   Application (Chrome) or Storage (Firefox) tab: open Cookies and")
	fmt.Fprintln(w, "   https://www.bilibili.com, then copy the values below.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "   SESSDATA     required; looks like 1a2b3c4d%2C1700000000%2Cabcd*11")
	fmt.Fprintln(w, "   bili_jct     optional; 32 hex characters")
	fmt.Fprintln(w, "   DedeUserID   optional; your numeric user id")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "WARNING: SESSDATA gives full access to your account. Never share it.")
	fmt.Fprintln(w, "opusdl keeps it in the system keychain or an encrypted file.")
	fmt.Fprintln(w, line)
}

// ShowQuickExtractGuide writes a condensed version for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 -> Network -> reload -> any api.bilibili.com request -> Headers -> Cookie")
	fmt.Fprintln(w, "Need: SESSDATA=... (bili_jct and DedeUserID optional)")
}
