package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/usecase"
)

// transcribe accepts either a multipart "file" or an "audio_url" form field
func (h *handler) transcribe(c echo.Context) error {
	ctx := c.Request().Context()
	if h.MaxUploadBytes > 0 {
		// multipart framing needs a little headroom over the audio itself
		c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.MaxUploadBytes+1<<20)
	}

	audioURL := strings.TrimSpace(c.FormValue("audio_url"))
	fileHeader, fileErr := c.FormFile("file")
	hasFile := fileErr == nil

	if hasFile == (audioURL != "") {
		return badRequest(c, "Provide exactly one of file or audio_url")
	}

	var (
		data     []byte
		filename string
		err      error
	)
	if hasFile {
		filename = fileHeader.Filename
		if h.MaxUploadBytes > 0 && fileHeader.Size > h.MaxUploadBytes {
			return h.serviceError(c, usecase.ErrAudioTooLarge)
		}
		f, openErr := fileHeader.Open()
		if openErr != nil {
			return badRequest(c, "Unable to read uploaded file")
		}
		data, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			return badRequest(c, "Unable to read uploaded file")
		}
	} else {
		data, filename, err = h.Transcription.FetchAudio(ctx, audioURL)
		if err != nil {
			if usecase.IsClientError(err) {
				return h.serviceError(c, err)
			}
			h.logger.Warn("Failed to fetch audio", zap.String("url", audioURL), zap.Error(err))
			return badRequest(c, "Unable to download audio_url")
		}
	}

	result, err := h.Transcription.TranscribeFile(ctx, data, filename, c.FormValue("language"))
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *handler) listTranscripts(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	transcripts, err := h.Transcription.ListTranscripts(c.Request().Context(), claimsFrom(c).UserID, limit)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, TranscriptListResponse{Transcripts: transcripts, Count: len(transcripts)})
}

// synthesize streams audio to the client as the provider produces it
func (h *handler) synthesize(c echo.Context) error {
	var req SynthesizeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	audio, contentType, err := h.Speech.Synthesize(c.Request().Context(), req.Text, req.VoiceID)
	if err != nil {
		return h.serviceError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, contentType)
	res.WriteHeader(http.StatusOK)

	written := 0
	for chunk := range audio {
		if _, err := res.Write(chunk); err != nil {
			h.logger.Warn("Client went away during synthesis", zap.Error(err))
			// drain so the producer can exit
			for range audio {
			}
			return nil
		}
		res.Flush()
		written += len(chunk)
	}

	h.logger.Debug("Synthesis streamed", zap.Int("bytes", written))
	return nil
}

func (h *handler) voices(c echo.Context) error {
	voices, err := h.Speech.Voices(c.Request().Context())
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, VoicesResponse{Voices: voices})
}

func (h *handler) answer(c echo.Context) error {
	var req usecase.Question
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	result, err := h.QA.Answer(c.Request().Context(), req)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *handler) answerBatch(c echo.Context) error {
	var req BatchQuestionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	results, err := h.QA.AnswerBatch(c.Request().Context(), req.Questions)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, BatchAnswerResponse{Results: results})
}
