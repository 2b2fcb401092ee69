package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"halisaha-bot/types"
)

const MaxPictureBytes = 5 << 20

var (
	ErrPictureTooLarge = errors.New("profile picture exceeds 5MB")
	ErrPictureType     = errors.New("profile picture must be JPEG or PNG")
)

// ValidatePicture checks the upload locally so a bad file never reaches the server.
func ValidatePicture(data []byte) (string, error) {
	if len(data) > MaxPictureBytes {
		return "", ErrPictureTooLarge
	}
	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/jpeg", "image/png":
		return contentType, nil
	}
	return "", ErrPictureType
}

func (c *Client) UploadProfilePicture(ctx context.Context, filename string, data []byte) (types.Profile, error) {
	contentType, err := ValidatePicture(data)
	if err != nil {
		return types.Profile{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="profilePicture"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return types.Profile{}, fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return types.Profile{}, fmt.Errorf("writing multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return types.Profile{}, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/profile-picture", &buf)
	if err != nil {
		return types.Profile{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var p types.Profile
	err = c.do(req, &p)
	return p, err
}

func (c *Client) UpdateProfile(ctx context.Context, upd types.ProfileUpdate) (types.Profile, error) {
	var p types.Profile
	err := c.send(ctx, http.MethodPut, "/users/profile", nil, upd, &p)
	return p, err
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.send(ctx, http.MethodPost, "/users/change-password", nil, body, nil)
}
