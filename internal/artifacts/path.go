// Package artifacts maps CV records to their stored PDF and resolves display
// URLs at three trust levels: confirmed, candidate and absent.
package artifacts

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PathVersion names the storage layout below. Bump it if the layout changes;
// records persist the resolved path so older artifacts stay reachable.
const PathVersion = "v1"

// Path returns the storage key of the artifact for (ownerID, cvName):
// {ownerID}/cvs/{cvName}.pdf. It is pure and deterministic.
func Path(ownerID, cvName string) string {
	return ownerID + "/cvs/" + cvName + ".pdf"
}

// NameFromPath reverses Path for keys under the owner's CV folder.
func NameFromPath(ownerID, key string) (string, bool) {
	name, ok := strings.CutPrefix(key, ownerID+"/cvs/")
	if !ok {
		return "", false
	}
	name, ok = strings.CutSuffix(name, ".pdf")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// PhotoPath returns the storage key of an owner's profile photo.
func PhotoPath(ownerID string) string {
	return ownerID + "/profil/photo.jpg"
}

// SourcePath returns the storage key of an uploaded source document.
func SourcePath(ownerID, fileName string) string {
	return ownerID + "/sources/" + fileName
}

// CacheBust appends a freshness token so a regenerated artifact is not served
// from a stale cache. An existing v parameter is replaced.
func CacheBust(rawURL string, at time.Time) string {
	if rawURL == "" {
		return ""
	}
	token := strconv.FormatInt(at.UnixNano(), 36)
	u, err := url.Parse(rawURL)
	if err != nil {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		return rawURL + sep + "v=" + token
	}
	q := u.Query()
	q.Set("v", token)
	u.RawQuery = q.Encode()
	return u.String()
}
