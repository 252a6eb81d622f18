//go:build testutils

package testutils

// TestPlatformText is a sample platform document used by ingestion and store
// tests.
const TestPlatformText = `Nuestra propuesta educativa parte de una premisa simple: ninguna persona joven debe quedar fuera del sistema educativo por razones económicas. Proponemos becas completas para estudiantes de familias en pobreza extrema, transporte gratuito en zonas rurales y un programa nacional de alimentación escolar que cubra los tres ciclos.

En materia de salud, impulsaremos la reducción de las listas de espera de la seguridad social mediante la compra de servicios a proveedores acreditados, la telemedicina para zonas alejadas y la construcción de tres nuevos hospitales regionales durante el primer cuatrienio.

La seguridad ciudadana exige inversión sostenida. Duplicaremos el presupuesto de la policía comunitaria, crearemos una unidad especializada en delitos informáticos y estableceremos programas de prevención de violencia juvenil en los ochenta cantones del país.

Sobre el empleo, nuestra meta es la creación de doscientos mil puestos de trabajo formales. Lo lograremos con incentivos a la manufactura ligera fuera de la gran área metropolitana, crédito blando para pequeñas y medianas empresas y una reforma que reduzca las cargas sociales para el primer empleo joven.

El ambiente no es negociable. Mantendremos la matriz eléctrica renovable por encima del noventa y ocho por ciento, prohibiremos la exploración petrolera en territorio nacional y destinaremos el uno por ciento del presupuesto a la protección de parques nacionales y corredores biológicos.`

// TestQuestions are sample user questions used by cache and chat tests.
var TestQuestions = []string{
	"¿Qué propone el partido en materia de educación?",
	"¿Cómo piensan reducir las listas de espera en salud?",
	"¿Cuál es la propuesta de seguridad ciudadana?",
	"¿Cuántos empleos prometen crear?",
	"¿Qué dicen sobre la exploración petrolera?",
}
