package recipe

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const promptHeader = `Rol: Eres un chef profesional con más de 20 años de experiencia en cocina internacional,
especializado en crear recetas caseras deliciosas, prácticas y accesibles para cocineros de todos los niveles.

Instrucciones:
1. Recibes como entrada una lista de ingredientes disponibles, un estilo de cocina (opcional) y restricciones por alergias (opcional).
2. Genera UNA receta que:
   - Aproveche al máximo los ingredientes proporcionados.
   - Sea fácil de preparar en cualquier cocina doméstica.
   - Tenga un equilibrio perfecto de sabores y texturas.
   - Sea visualmente atractiva y apetitosa.
   - Incluya consejos profesionales para mejorar el resultado final.

Ingredientes disponibles:
`

const promptFormat = `
Por favor, proporciona la receta con el siguiente formato:

Nombre de la receta: [Un nombre creativo y apetitoso que refleje la esencia del plato]

## 🛒 INGREDIENTES
- Lista clara de ingredientes con cantidades específicas (ej: 2 cucharadas, 1 taza, 200g)
- Alternativas posibles para ingredientes que podrían faltar
- Especificar si algún ingrediente es opcional

## ⏱ TIEMPO DE PREPARACIÓN
- Preparación: [X] minutos
- Cocción: [Y] minutos
- Total: [X+Y] minutos

## 🎚 DIFICULTAD
- Nivel: Fácil/Medio/Difícil
- Técnicas requeridas: [listar técnicas]

## 👨‍🍳 PREPARACIÓN
1. Instrucciones claras y secuenciales, numeradas.
2. Incluir tiempos aproximados para cada paso importante.
3. Señalar puntos clave donde el cocinero debe prestar atención.
4. Incluir consejos de presentación.

## 💡 CONSEJOS DEL CHEF
- Trucos profesionales para mejorar el sabor
- Cómo saber cuándo está en su punto
- Posibles variaciones de la receta
- Cómo conservar y recalentar si es necesario

## 🛍 ` + ShoppingListHeader + `
(Solo incluir ingredientes que no estén en la lista original)
- [ ] Ingrediente 1 (cantidad)
- [ ] Ingrediente 2 (cantidad)

[Nota: La receta debe ser clara, precisa y fácil de seguir incluso para principiantes. Usar un tono cercano y motivador.]
`

// BuildPrompt renders the recipe generation instruction. The allergy and
// cuisine clauses are only present when the corresponding value is not blank;
// allergies are embedded verbatim and the cuisine is capitalised.
func BuildPrompt(ingredients []string, allergies, cuisineType string) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	first := true
	for _, item := range ingredients {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(item)
		first = false
	}
	b.WriteString("\n\n")

	if allergies = strings.TrimSpace(allergies); allergies != "" {
		b.WriteString("🚫 RESTRICCIONES ALIMENTARIAS: ")
		b.WriteString(allergies)
		b.WriteByte('\n')
	}
	if cuisineType = strings.TrimSpace(cuisineType); cuisineType != "" {
		b.WriteString("🌍 ESTILO CULINARIO: ")
		b.WriteString(Capitalize(cuisineType))
		b.WriteByte('\n')
	}

	b.WriteString(promptFormat)
	return b.String()
}

// Capitalize upper-cases the first letter of s and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Spanish).String(string(r)) + cases.Lower(language.Spanish).String(s[size:])
}
