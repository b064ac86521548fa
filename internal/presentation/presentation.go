package presentation

import (
	"github.com/Brownie44l1/fer-classifier/internal/emotion"
	"github.com/Brownie44l1/fer-classifier/internal/source"
)

// Notification is shown instead of a dialog when no dialog matches a key.
const Notification = "Error"

type Dialog struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

var dialogs = map[emotion.Label]Dialog{
	emotion.Anger:     {Title: "Anger", Message: "You look angry."},
	emotion.Disgust:   {Title: "Disgust", Message: "You look disgusted."},
	emotion.Fear:      {Title: "Fear", Message: "You look scared."},
	emotion.Happiness: {Title: "Happiness", Message: "You look happy."},
	emotion.Sadness:   {Title: "Sadness", Message: "You look sad."},
	emotion.Surprise:  {Title: "Surprise", Message: "You look surprised."},
	emotion.Neutral:   {Title: "Neutral", Message: "You look calm."},
	emotion.None:      {Title: "Not sure", Message: "No emotion could be recognized with enough confidence. Try another photo."},
	emotion.Error:     {Title: "Error", Message: "The photo could not be processed. Please try again."},
}

func ForLabel(l emotion.Label) Dialog {
	d, ok := dialogs[l]
	if !ok {
		d = dialogs[emotion.Error]
		l = emotion.Error
	}
	d.Key = l.String()
	return d
}

// Lookup resolves a presentation key. ok is false for keys outside the nine
// known states; callers then show Notification.
func Lookup(key string) (Dialog, bool) {
	l, err := emotion.ParseLabel(key)
	if err != nil {
		return Dialog{}, false
	}
	return ForLabel(l), true
}

// PermissionDialog explains a denied camera attempt.
func PermissionDialog(err *source.PermissionError) Dialog {
	if err.Permanent {
		return Dialog{
			Key:     "camera_permission_settings",
			Title:   "Permission to use the camera",
			Message: "To use the camera, you need to give permission for this in the settings.",
		}
	}
	return Dialog{
		Key:     "camera_permission_rationale",
		Title:   "Permission to use the camera",
		Message: "Permission must be provided to use the camera. Please allow access to the camera.",
	}
}
