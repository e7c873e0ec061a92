package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/annel0/mapcoord/internal/destination"
	"github.com/annel0/mapcoord/internal/storage"
	"github.com/gin-gonic/gin"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// EncodeRequest - запрос упаковки позиции
type EncodeRequest struct {
	Mode string `json:"mode" binding:"required"`
	coord.Position
	Strict bool `json:"strict"` // строгая упаковка даже если сервер работает с усечением
}

// EncodeResponse - упакованное слово и позиция, которую оно представляет
type EncodeResponse struct {
	Mode     string         `json:"mode"`
	Packed   uint32         `json:"packed"`
	Hex      string         `json:"hex"`
	Position coord.Position `json:"position"`
	Wrapped  bool           `json:"wrapped"`
}

// DecodeRequest - запрос распаковки; hex имеет приоритет над packed
type DecodeRequest struct {
	Mode   string  `json:"mode" binding:"required"`
	Packed *uint32 `json:"packed"`
	Hex    string  `json:"hex"`
}

// TextRequest - текст из буфера обмена
type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

// ProblemRow - строка списка проблем
type ProblemRow struct {
	Row      int    `json:"row"`
	Severity string `json:"severity"`
	Source   string `json:"source"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// DestinationRow - пункт назначения предмета
type DestinationRow struct {
	ItemID   uint64         `json:"item_id"`
	Position coord.Position `json:"position"`
	Packed   string         `json:"packed"`
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: data})
}

// failErr переводит доменную ошибку в HTTP статус
func failErr(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, coord.ErrOutOfDomain):
		fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidItem):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, destination.ErrNothingToUndo):
		fail(c, http.StatusConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	}
}

func parseItemID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "Неверный идентификатор предмета")
		return 0, false
	}
	return id, true
}

func parseMode(c *gin.Context, s string) (coord.Mode, bool) {
	mode, err := coord.ParseMode(s)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return mode, true
}

// ==== /api/coord ====

func (rs *RestServer) handleEncode(c *gin.Context) {
	var req EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	mode, valid := parseMode(c, req.Mode)
	if !valid {
		return
	}

	var packed coord.Packed
	if rs.strict || req.Strict {
		var err error
		if packed, err = rs.codec.PackStrict(mode, req.Position); err != nil {
			failErr(c, err)
			return
		}
	} else {
		packed = rs.codec.Pack(mode, req.Position)
	}

	decoded := coord.Unpack(mode, packed)
	ok(c, "Позиция упакована", EncodeResponse{
		Mode:     mode.String(),
		Packed:   uint32(packed),
		Hex:      packed.String(),
		Position: decoded,
		Wrapped:  decoded != req.Position,
	})
}

func (rs *RestServer) handleDecode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	mode, valid := parseMode(c, req.Mode)
	if !valid {
		return
	}

	var word uint32
	switch {
	case req.Hex != "":
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(req.Hex), "0x"), 16, 32)
		if err != nil {
			fail(c, http.StatusBadRequest, "Неверное шестнадцатеричное слово")
			return
		}
		word = uint32(v)
	case req.Packed != nil:
		word = *req.Packed
	default:
		fail(c, http.StatusBadRequest, "Нужно указать packed или hex")
		return
	}

	packed := coord.Packed(word)
	ok(c, "Слово распаковано", EncodeResponse{
		Mode:     mode.String(),
		Packed:   word,
		Hex:      packed.String(),
		Position: rs.codec.Unpack(mode, packed),
	})
}

func (rs *RestServer) handleDomain(c *gin.Context) {
	mode, valid := parseMode(c, c.Param("mode"))
	if !valid {
		return
	}
	ok(c, mode.String(), coord.DomainOf(mode))
}

// handleParse разбирает позицию из текста (формат x:y:z или буфер обмена)
func (rs *RestServer) handleParse(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	if pos, err := coord.Parse(req.Text); err == nil {
		ok(c, "Позиция разобрана", pos)
		return
	}
	if pos, found := coord.ParseClipboard(req.Text); found {
		ok(c, "Позиция разобрана", pos)
		return
	}
	fail(c, http.StatusBadRequest, "Текст не содержит позицию")
}

// handleSector возвращает центр сектора карты в мировых координатах
func (rs *RestServer) handleSector(c *gin.Context) {
	var xyz [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Param(name))
		if err != nil {
			fail(c, http.StatusBadRequest, "Неверные координаты сектора")
			return
		}
		xyz[i] = v
	}

	center := coord.SectorCenter(xyz[0], xyz[1], xyz[2], rs.sectorSize)
	packed := rs.codec.Pack(coord.Absolute, center)
	ok(c, "Центр сектора", EncodeResponse{
		Mode:     coord.Absolute.String(),
		Packed:   uint32(packed),
		Hex:      packed.String(),
		Position: center,
		Wrapped:  coord.CheckDomain(coord.Absolute, center) != nil,
	})
}

// ==== /api/destinations ====

func (rs *RestServer) handleListDestinations(c *gin.Context) {
	all, err := rs.service.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	rows := make([]DestinationRow, 0, len(all))
	for id, pos := range all {
		rows = append(rows, DestinationRow{ItemID: id, Position: pos, Packed: coord.PackAbsolute(pos).String()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemID < rows[j].ItemID })
	ok(c, "Пункты назначения", rows)
}

func (rs *RestServer) handleGetDestination(c *gin.Context) {
	id, valid := parseItemID(c)
	if !valid {
		return
	}
	pos, err := rs.service.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, "Пункт назначения", DestinationRow{ItemID: id, Position: pos, Packed: coord.PackAbsolute(pos).String()})
}

func (rs *RestServer) handleSetDestination(c *gin.Context) {
	id, valid := parseItemID(c)
	if !valid {
		return
	}
	var pos coord.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат позиции")
		return
	}
	stored, err := rs.service.Set(c.Request.Context(), id, pos)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, "Пункт назначения сохранен", DestinationRow{ItemID: id, Position: stored, Packed: coord.PackAbsolute(stored).String()})
}

func (rs *RestServer) handleDeleteDestination(c *gin.Context) {
	id, valid := parseItemID(c)
	if !valid {
		return
	}
	if err := rs.service.Remove(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	ok(c, "Пункт назначения удален", nil)
}

func (rs *RestServer) handleMoveDestination(c *gin.Context) {
	id, valid := parseItemID(c)
	if !valid {
		return
	}
	var delta coord.Position
	if err := c.ShouldBindJSON(&delta); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат дельты")
		return
	}
	pos, err := rs.service.Move(c.Request.Context(), id, delta)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, "Пункт назначения сдвинут", DestinationRow{ItemID: id, Position: pos, Packed: coord.PackAbsolute(pos).String()})
}

func (rs *RestServer) handleUndoDestination(c *gin.Context) {
	id, valid := parseItemID(c)
	if !valid {
		return
	}
	pos, err := rs.service.Undo(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, "Перемещение отменено", DestinationRow{ItemID: id, Position: pos, Packed: coord.PackAbsolute(pos).String()})
}

func (rs *RestServer) handleShiftAll(c *gin.Context) {
	var delta coord.Position
	if err := c.ShouldBindJSON(&delta); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат дельты")
		return
	}
	n, err := rs.service.ShiftAll(c.Request.Context(), delta)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, "Пункты назначения сдвинуты", gin.H{"shifted": n})
}

func (rs *RestServer) handleValidate(c *gin.Context) {
	n, err := rs.service.Validate(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, "Проверка завершена", gin.H{"problems": n})
}

// ==== /api/problems ====

func (rs *RestServer) handleProblems(c *gin.Context) {
	rows := []ProblemRow{}
	if rs.problems != nil {
		for i, p := range rs.problems.Rows() {
			rows = append(rows, ProblemRow{
				Row:      i,
				Severity: p.Severity,
				Source:   p.Source,
				Kind:     p.Kind.String(),
				Message:  p.Message,
			})
		}
	}
	ok(c, "Список проблем", rows)
}
