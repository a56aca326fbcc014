package entity

// DefectReport хранит итог сравнения эталона и проверяемого снимка.
type DefectReport struct {
	Annotated   *Image         // выровненный снимок с подписанными рамками
	DefectCount int            // число дефектов после фильтра по размеру
	Regions     []DefectRegion // найденные области в порядке обхода контуров
	Homography  Homography     // преобразование снимка в систему координат эталона
	Matches     int            // принятые сопоставления ключевых точек
	Inliers     int            // сопоставления, согласные с гомографией
	RawPixels   int            // ненулевые пиксели маски XOR
	CleanPixels int            // ненулевые пиксели маски после морфологии
}

// HasDefects сообщает, найден ли хотя бы один дефект.
func (r *DefectReport) HasDefects() bool {
	return r.DefectCount > 0
}

// Description — текстовое описание результата проверки.
type Description struct {
	Text string
}
